package main

import (
	"context"
	"fmt"

	"github.com/arcspire/mediasync/internal/formatter"
	"github.com/arcspire/mediasync/internal/queue"
	"github.com/arcspire/mediasync/internal/repositories"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/urfave/cli/v3"
)

// JobsList lists archived jobs, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repositories.NewJobHistoryRepository(db).ListArchivedJobs(ctx, limit)
	if err != nil {
		return err
	}

	if useJSON {
		data, err := formatter.ToJSON(records)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writePlain("%s", formatter.FormatJobList(records))
}

// JobsShow prints one job record with its logs and metrics.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id required", shared.ErrJobNotFound)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	record, err := repositories.NewJobHistoryRepository(db).GetJob(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.ToJSON(record)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writePlain("%s", formatter.FormatJobDetail(record))
}

// JobsDelete removes one archived job from history.
func (r *Runner) JobsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id required", shared.ErrJobNotFound)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewJobHistoryRepository(db).DeleteArchivedJob(ctx, id); err != nil {
		return err
	}
	return r.writePlain("deleted job %s\n", id)
}

// JobsCancel flags a queued or running job for cooperative cancellation. The
// job stops at its next check, not immediately.
func (r *Runner) JobsCancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id required", shared.ErrJobNotFound)
	}

	client, err := r.redisClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cancels := queue.NewRedisCancelStore(client, r.config.Queue.Namespace)
	if err := cancels.RequestCancel(ctx, id); err != nil {
		return fmt.Errorf("failed to request cancellation: %w", err)
	}
	return r.writePlain("cancellation requested for job %s\n", id)
}

// TasksList prints every registered task with its input fields.
func (r *Runner) TasksList(ctx context.Context, cmd *cli.Command) error {
	for _, def := range staticRegistry().Definitions() {
		r.writePlain("%s (%s)\n", def.Name, def.Visibility)
		if def.Description != "" {
			r.writePlain("  %s\n", def.Description)
		}
		for _, field := range def.Schema.Fields {
			required := ""
			if field.Required {
				required = " (required)"
			}
			r.writePlain("  --%s %s%s  %s\n", field.Name, field.Type, required, field.Usage)
		}
		r.writePlain("\n")
	}
	return nil
}
