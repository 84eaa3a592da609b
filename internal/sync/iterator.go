package sync

import (
	"context"
)

// OutcomeState classifies what happened to one item of a bulk sweep.
type OutcomeState string

const (
	// StateFulfilled means the item was refreshed and stored.
	StateFulfilled OutcomeState = "fulfilled"
	// StateRejected means the item errored; the sweep continues regardless.
	StateRejected OutcomeState = "rejected"
	// StateMissing means the provider no longer serves the item. This is a
	// removal signal for the caller, deliberately distinct from rejection.
	StateMissing OutcomeState = "missing"
)

// Outcome is the transient per-item result of a bulk sweep. Outcomes are
// consumed immediately by the calling task handler to update metrics; only
// aggregated counts outlive the sweep.
type Outcome struct {
	APIID  string
	State  OutcomeState
	Reason error
}

// BulkIterator yields one Outcome per candidate, lazily and strictly in
// candidate order. It is finite and not restartable.
//
// Iteration is sequential on purpose: the provider's rate limiter is then the
// only throttling mechanism, with no second concurrency-limiting layer to
// reason about. Callers drive the pull loop and own early termination, which
// is where cooperative cancellation checks belong.
type BulkIterator struct {
	svc *Service
	ids []string
	pos int
}

// BulkRefresh prepares a sweep over the ids due for refresh. limit <= 0 means
// the whole candidate set; otherwise the iterator yields at most limit
// outcomes and the provider is never called for the remainder.
func (s *Service) BulkRefresh(ctx context.Context, limit int) (*BulkIterator, error) {
	ids, err := s.candidates(ctx, limit)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return &BulkIterator{svc: s, ids: ids}, nil
}

// Size returns the number of outcomes the iterator will yield if fully drained.
func (it *BulkIterator) Size() int { return len(it.ids) }

// Next refreshes the next candidate and reports its outcome. It returns false
// once the sweep is exhausted. Per-item errors are captured in the outcome,
// never propagated: one item's failure must not abort the remaining items.
func (it *BulkIterator) Next(ctx context.Context) (Outcome, bool) {
	if it.pos >= len(it.ids) {
		return Outcome{}, false
	}

	apiID := it.ids[it.pos]
	it.pos++

	result, err := it.svc.FetchAndRefresh(ctx, apiID)
	switch {
	case err != nil:
		it.svc.logger.Warn("item refresh failed", "api_id", apiID, "error", err)
		return Outcome{APIID: apiID, State: StateRejected, Reason: err}, true
	case result.Missing:
		return Outcome{APIID: apiID, State: StateMissing}, true
	default:
		return Outcome{APIID: apiID, State: StateFulfilled}, true
	}
}
