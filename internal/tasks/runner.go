package tasks

import (
	"context"
	"fmt"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/charmbracelet/log"
)

// History persists finished runs. Implemented by the job history repository.
type History interface {
	SaveJobRecord(ctx context.Context, record *models.JobRecord) error
}

// RunRequest describes one invocation of a registered task.
type RunRequest struct {
	Name        string
	Input       map[string]any
	TriggeredBy models.TriggeredBy
	UserID      string
	// RunID lets the queue worker reuse the enqueued job id; direct runs
	// leave it empty and get a fresh one.
	RunID string
	// Cancelled is polled cooperatively by the handler. Nil means the run
	// cannot be cancelled.
	Cancelled CancelCheck
}

// Runner executes tasks synchronously, outside the queue. The queue worker
// drives the same Run method, so queued and direct runs are interchangeable
// with respect to what gets recorded.
type Runner struct {
	registry *Registry
	history  History
	logger   *log.Logger
}

// NewRunner creates a Runner over the given registry and history store.
func NewRunner(registry *Registry, history History, logger *log.Logger) *Runner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Runner{registry: registry, history: history, logger: logger}
}

// Run resolves, validates and executes one task run, blocking until it
// reaches a terminal state. Exactly one JobRecord with a terminal status is
// persisted for every run, whether it completes, fails, panics or is
// cancelled; the record keeps whatever partial logs and metrics the handler
// gathered before the terminal transition.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*models.JobRecord, error) {
	def, err := r.registry.Resolve(req.Name)
	if err != nil {
		return nil, err
	}

	run := NewContext(ContextOpts{
		TaskName:    req.Name,
		TriggeredBy: req.TriggeredBy,
		UserID:      req.UserID,
		RunID:       req.RunID,
		Logger:      r.logger,
		Cancelled:   req.Cancelled,
	})

	input, err := def.Schema.Validate(req.Input)
	if err != nil {
		// Rejected before the handler runs and never retried, but still
		// recorded so an enqueued job cannot vanish without a terminal state.
		run.Error("input validation failed", "error", err)
		record := run.Snapshot(models.JobFailed, err.Error())
		r.persist(ctx, record)
		return record, err
	}

	var handlerErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				handlerErr = fmt.Errorf("task panicked: %v", rec)
				run.Error("task panicked", "panic", rec)
			}
		}()
		handlerErr = def.Handler(ctx, run, input)
	}()

	status := models.JobCompleted
	errMsg := ""
	switch {
	case run.Cancelled():
		status = models.JobCancelled
		run.Warn("run cancelled")
	case handlerErr != nil:
		status = models.JobFailed
		errMsg = handlerErr.Error()
	}

	record := run.Snapshot(status, errMsg)
	r.persist(ctx, record)

	if handlerErr != nil && status == models.JobFailed {
		return record, handlerErr
	}
	return record, nil
}

// persist saves the terminal record. Persistence failures are logged rather
// than propagated: the run's own outcome must not be masked by a history
// write error.
func (r *Runner) persist(ctx context.Context, record *models.JobRecord) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveJobRecord(ctx, record); err != nil {
		r.logger.Error("failed to persist job record", "job", record.ID, "error", err)
	}
}
