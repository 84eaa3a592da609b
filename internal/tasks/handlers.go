package tasks

import (
	"context"
	"fmt"

	"github.com/arcspire/mediasync/internal/models"
	syncsvc "github.com/arcspire/mediasync/internal/sync"
)

// Task names, one CLI subcommand each.
const (
	TaskBulkMediaRefresh      = "bulk-media-refresh"
	TaskRefreshMediaItem      = "refresh-media-item"
	TaskCleanupJobHistory     = "cleanup-job-history"
	TaskRecalculateStatistics = "recalculate-statistics"
)

// HistoryPruner trims archived job records, oldest first.
type HistoryPruner interface {
	PruneArchivedJobs(ctx context.Context, keepCompleted, keepFailed int) (int, error)
}

// StatisticsCalculator recomputes a user's derived statistics. The formulas
// live elsewhere; only the invocation is a task concern.
type StatisticsCalculator interface {
	Recalculate(ctx context.Context, userID string) error
}

// HandlerDeps carries the collaborators task handlers close over. Everything
// is injected; handlers never reach for globals or the environment.
type HandlerDeps struct {
	Services   map[models.MediaType]*syncsvc.Service
	History    HistoryPruner
	Statistics StatisticsCalculator
}

// RegisterAll registers every built-in task definition. Called exactly once
// at process start; any error here is fatal.
func RegisterAll(reg *Registry, deps HandlerDeps) error {
	defs := []*Definition{
		newBulkMediaRefreshDefinition(deps),
		newRefreshMediaItemDefinition(deps),
		newCleanupJobHistoryDefinition(deps),
		newRecalculateStatisticsDefinition(deps),
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func mediaTypeNames() []string {
	types := models.AllMediaTypes()
	names := make([]string, len(types))
	for i, mt := range types {
		names[i] = string(mt)
	}
	return names
}

func newRefreshMediaItemDefinition(deps HandlerDeps) *Definition {
	return &Definition{
		Name:        TaskRefreshMediaItem,
		Visibility:  VisibilityUser,
		Description: "Re-fetch one catalog item from its metadata provider",
		Schema: Schema{Fields: []Field{
			{Name: "mediaType", Type: FieldString, Required: true, Enum: mediaTypeNames(), Usage: "Media category of the item"},
			{Name: "apiId", Type: FieldString, Required: true, Usage: "Provider id of the item"},
			{Name: "userId", Type: FieldString, Usage: "User the refresh is attributed to"},
		}},
		Handler: func(ctx context.Context, run *Context, input Input) error {
			mediaType := models.MediaType(input.String("mediaType"))
			apiID := input.String("apiId")

			svc, ok := deps.Services[mediaType]
			if !ok {
				return fmt.Errorf("no provider configured for %s", mediaType)
			}

			return run.Step("refresh", func() error {
				result, err := svc.FetchAndRefresh(ctx, apiID)
				if err != nil {
					return err
				}

				if result.Missing {
					if err := svc.MarkMissing(ctx, apiID); err != nil {
						return err
					}
					run.Warn("item no longer available upstream, marked missing", "api_id", apiID)
					run.Metric("removed", 1)
					return nil
				}

				run.Info("item refreshed", "api_id", apiID, "title", result.Item.Title)
				run.Metric("refreshed", 1)
				return nil
			})
		},
	}
}

func newCleanupJobHistoryDefinition(deps HandlerDeps) *Definition {
	return &Definition{
		Name:        TaskCleanupJobHistory,
		Visibility:  VisibilityAdmin,
		Description: "Prune archived job records beyond a retention count",
		Schema: Schema{Fields: []Field{
			{Name: "keep", Type: FieldInt, Default: 100, Usage: "Number of records to retain per terminal status"},
		}},
		Handler: func(ctx context.Context, run *Context, input Input) error {
			keep := input.Int("keep")
			return run.Step("prune", func() error {
				deleted, err := deps.History.PruneArchivedJobs(ctx, keep, keep)
				if err != nil {
					return err
				}
				run.Info("job history pruned", "deleted", deleted, "keep", keep)
				run.Metric("deleted", deleted)
				return nil
			})
		},
	}
}

func newRecalculateStatisticsDefinition(deps HandlerDeps) *Definition {
	return &Definition{
		Name:        TaskRecalculateStatistics,
		Visibility:  VisibilityUser,
		Description: "Recompute a user's derived statistics and achievements",
		Schema: Schema{Fields: []Field{
			{Name: "userId", Type: FieldString, Required: true, Usage: "User to recalculate"},
		}},
		Handler: func(ctx context.Context, run *Context, input Input) error {
			userID := input.String("userId")
			return run.Step("recalculate", func() error {
				if err := deps.Statistics.Recalculate(ctx, userID); err != nil {
					return err
				}
				run.Info("statistics recalculated", "user", userID)
				return nil
			})
		},
	}
}
