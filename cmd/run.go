package main

import (
	"context"

	"github.com/arcspire/mediasync/internal/formatter"
	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/queue"
	"github.com/arcspire/mediasync/internal/repositories"
	"github.com/arcspire/mediasync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// RunTask enqueues one task run, or executes it in-process with --direct.
// Both paths validate against the same schema and land in the same history.
func (r *Runner) RunTask(ctx context.Context, cmd *cli.Command, def *tasks.Definition) error {
	input := inputFromFlags(cmd, def.Schema)
	userID := cmd.String("user")

	if cmd.Bool("direct") {
		return r.runDirect(ctx, cmd, def, input, userID)
	}
	return r.enqueue(ctx, cmd, def, input, userID)
}

func (r *Runner) runDirect(ctx context.Context, cmd *cli.Command, def *tasks.Definition, input map[string]any, userID string) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := r.buildEngine(db, nil)
	if err != nil {
		return err
	}

	record, runErr := engine.runner.Run(ctx, tasks.RunRequest{
		Name:        def.Name,
		Input:       input,
		TriggeredBy: models.TriggerCLI,
		UserID:      userID,
	})

	if record != nil {
		if cmd.Bool("json") {
			data, err := formatter.ToJSON(record)
			if err != nil {
				return err
			}
			if err := r.writeBytes(data); err != nil {
				return err
			}
		} else {
			if err := r.writePlain("%s", formatter.FormatJobDetail(record)); err != nil {
				return err
			}
		}
	}

	return runErr
}

func (r *Runner) enqueue(ctx context.Context, cmd *cli.Command, def *tasks.Definition, input map[string]any, userID string) error {
	// Reject bad input before it reaches the queue.
	if _, err := def.Schema.Validate(input); err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	q, err := queue.NewQueue(queue.QueueOpts{
		RedisURL:  r.config.Queue.RedisURL,
		Namespace: r.config.Queue.Namespace,
		Recorder:  repositories.NewJobHistoryRepository(db),
	})
	if err != nil {
		return err
	}
	defer q.Close()

	job, err := q.Enqueue(ctx, queue.Job{
		TaskName:    def.Name,
		Payload:     input,
		TriggeredBy: models.TriggerCLI,
		UserID:      userID,
	})
	if err != nil {
		return err
	}

	r.logger.Info("job enqueued", "task", def.Name, "job", job.ID)
	if cmd.Bool("json") {
		data, err := formatter.ToJSON(job)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writePlain("enqueued %s as job %s\n", def.Name, job.ID)
}
