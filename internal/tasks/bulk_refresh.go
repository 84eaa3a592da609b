package tasks

import (
	"context"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	syncsvc "github.com/arcspire/mediasync/internal/sync"
	"golang.org/x/time/rate"
)

func newBulkMediaRefreshDefinition(deps HandlerDeps) *Definition {
	return &Definition{
		Name:        TaskBulkMediaRefresh,
		Visibility:  VisibilityAdmin,
		Description: "Re-fetch stale catalog items from their metadata providers",
		Schema: Schema{Fields: []Field{
			{Name: "mediaTypes", Type: FieldStrings, Default: mediaTypeNames(), Enum: mediaTypeNames(), Usage: "Categories to sweep"},
			{Name: "limit", Type: FieldInt, Default: 0, Usage: "Maximum items per category, 0 for all"},
		}},
		Handler: func(ctx context.Context, run *Context, input Input) error {
			limit := input.Int("limit")

			for _, name := range input.Strings("mediaTypes") {
				mediaType := models.MediaType(name)

				svc, ok := deps.Services[mediaType]
				if !ok {
					run.Warn("no provider configured, skipping category", "category", name)
					continue
				}

				err := run.Step(name, func() error {
					return sweepCategory(ctx, run, svc, name, limit)
				})
				if err != nil {
					return err
				}

				if run.Cancelled() {
					break
				}
			}
			return nil
		},
	}
}

// sweepCategory drains one category's bulk iterator, translating outcomes
// into metrics and honouring cooperative cancellation between items.
// Per-item failures are already terminal outcomes inside the iterator; only
// iterator setup and local persistence failures abort the step.
func sweepCategory(ctx context.Context, run *Context, svc *syncsvc.Service, category string, limit int) error {
	it, err := svc.BulkRefresh(ctx, limit)
	if err != nil {
		return err
	}

	total := it.Size()
	run.Info("sweep started", "candidates", total)

	// Progress lines are throttled so large sweeps do not flood the captured
	// log buffer.
	progress := rate.Sometimes{First: 1, Interval: 5 * time.Second}
	processed := 0

	for {
		if run.Cancelled() {
			run.Warn("cancellation requested, stopping sweep", "processed", processed, "candidates", total)
			return nil
		}

		outcome, ok := it.Next(ctx)
		if !ok {
			break
		}
		processed++

		switch outcome.State {
		case syncsvc.StateFulfilled:
			run.Increment(category + ".success")
		case syncsvc.StateMissing:
			if err := svc.MarkMissing(ctx, outcome.APIID); err != nil {
				return err
			}
			run.Increment(category + ".removed")
			run.Info("item pruned upstream, marked missing", "api_id", outcome.APIID)
		default:
			run.Increment(category + ".errors")
			run.Error("item refresh rejected", "api_id", outcome.APIID, "reason", outcome.Reason)
		}

		progress.Do(func() {
			run.Info("sweep progress", "processed", processed, "candidates", total)
		})
	}

	run.Info("sweep finished", "processed", processed)
	return nil
}
