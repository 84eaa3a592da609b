// Package sync implements per-category synchronization between a metadata
// provider and the local catalog: single-item fetch-and-store operations plus
// a lazy bulk refresh iterator used by the task engine.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/providers"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/charmbracelet/log"
)

// Repository is the persistence surface a Service needs for one media
// category. The database side of each call is a short transaction of its own;
// no transaction is ever held open across a provider HTTP call.
type Repository interface {
	// IDsDueForRefresh returns candidate provider ids ordered by staleness
	// (least recently synced first). limit <= 0 means no cap.
	IDsDueForRefresh(ctx context.Context, limit int) ([]string, error)

	// UpsertDetails stores normalized details, inserting or updating by
	// (media type, provider id), and stamps the sync time.
	UpsertDetails(ctx context.Context, details *models.MediaDetails) (*models.MediaItem, error)

	// MarkMissing flags an item the provider no longer serves. The item stays
	// in the catalog but drops out of future refresh sweeps.
	MarkMissing(ctx context.Context, apiID string) error
}

// RefreshResult is the outcome of refreshing a single item. Missing reports
// upstream absence (404/410), which is a removal signal, not an error.
type RefreshResult struct {
	Item    *models.MediaItem
	Missing bool
}

// Service syncs one media category against one provider.
type Service struct {
	source providers.Source
	repo   Repository
	logger *log.Logger

	// changeFeedHorizon bounds how far back a provider changelog is consulted
	// when building bulk candidates.
	changeFeedHorizon time.Duration
}

// ServiceOpts contains configuration options for creating a [Service].
type ServiceOpts struct {
	Source providers.Source
	Repo   Repository
	Logger *log.Logger
}

// NewService creates a sync service for one provider/category pair.
func NewService(opts ServiceOpts) *Service {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Service{
		source:            opts.Source,
		repo:              opts.Repo,
		logger:            opts.Logger.With("provider", opts.Source.Name(), "category", opts.Source.Category()),
		changeFeedHorizon: 24 * time.Hour,
	}
}

// Category returns the media category this service syncs.
func (s *Service) Category() models.MediaType { return s.source.Category() }

// FetchAndStore fetches details for a new item and stores them. Upstream
// absence is an error here: storing something the provider does not serve is
// a caller mistake.
func (s *Service) FetchAndStore(ctx context.Context, apiID string) (*models.MediaItem, error) {
	details, err := s.source.Details(ctx, apiID)
	if err != nil {
		return nil, err
	}
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("provider returned unusable details for %s: %w", apiID, err)
	}
	return s.repo.UpsertDetails(ctx, details)
}

// FetchAndRefresh re-fetches details for an item already in the catalog.
// Unlike [Service.FetchAndStore], upstream absence (404 or 410) is translated
// into a Missing result instead of an error, so callers can branch on removal
// explicitly rather than inspecting error classes.
func (s *Service) FetchAndRefresh(ctx context.Context, apiID string) (RefreshResult, error) {
	details, err := s.source.Details(ctx, apiID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrGone) {
			return RefreshResult{Missing: true}, nil
		}
		return RefreshResult{}, err
	}

	if err := details.Validate(); err != nil {
		return RefreshResult{}, fmt.Errorf("provider returned unusable details for %s: %w", apiID, err)
	}

	item, err := s.repo.UpsertDetails(ctx, details)
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{Item: item}, nil
}

// MarkMissing flags an item as pruned upstream.
func (s *Service) MarkMissing(ctx context.Context, apiID string) error {
	return s.repo.MarkMissing(ctx, apiID)
}

// candidates builds the ordered id set for a bulk sweep. Providers exposing a
// changelog are preferred; otherwise the repository's staleness order is used.
// A failing changelog falls back to staleness with a warning rather than
// failing the sweep before it starts.
func (s *Service) candidates(ctx context.Context, limit int) ([]string, error) {
	if feed, ok := s.source.(providers.ChangeFeed); ok {
		ids, err := feed.ChangedIDs(ctx, time.Now().Add(-s.changeFeedHorizon))
		if err == nil && len(ids) > 0 {
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}
			return ids, nil
		}
		if err != nil {
			s.logger.Warn("change feed unavailable, falling back to staleness order", "error", err)
		}
	}

	return s.repo.IDsDueForRefresh(ctx, limit)
}
