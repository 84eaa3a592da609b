package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/arcspire/mediasync/internal/queue"
	"github.com/arcspire/mediasync/internal/ratelimit"
	"github.com/arcspire/mediasync/internal/repositories"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Worker runs the queue worker until interrupted, with the cron scheduler
// alongside unless --schedule=false. Provider rate limiters use the redis
// store here so a worker and ad hoc direct runs share the same budgets.
func (r *Runner) Worker(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := r.redisClient()
	if err != nil {
		return err
	}

	engine, err := r.buildEngine(db, ratelimit.NewRedisStore(client))
	if err != nil {
		client.Close()
		return err
	}

	q, err := queue.NewQueue(queue.QueueOpts{
		RedisURL:  r.config.Queue.RedisURL,
		Namespace: r.config.Queue.Namespace,
		Recorder:  repositories.NewJobHistoryRepository(db),
	})
	if err != nil {
		client.Close()
		return err
	}
	defer q.Close()
	defer client.Close()

	if depth, err := q.Depth(ctx); err == nil {
		r.logger.Info("starting worker", "queued", depth)
	}

	worker := queue.NewWorker(queue.WorkerOpts{
		Broker:  q,
		Runner:  engine.runner,
		Cancels: queue.NewRedisCancelStore(client, r.config.Queue.Namespace),
		History: engine.history,
		Logger:  r.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.Bool("schedule") && len(r.config.Schedule) > 0 {
		scheduler, err := queue.NewScheduler(q, r.config.Schedule, r.logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	go func() {
		for event := range worker.Events() {
			r.writePlain("[%s] %s %s (attempt %d)\n", event.Status, event.TaskName, event.JobID, event.Attempt)
		}
	}()

	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Schedule runs only the cron scheduler, enqueueing jobs for a worker running
// elsewhere. Run either this or `worker --schedule`, not both, or entries
// fire twice.
func (r *Runner) Schedule(ctx context.Context, cmd *cli.Command) error {
	if len(r.config.Schedule) == 0 {
		return fmt.Errorf("%w: no schedule entries configured", shared.ErrInvalidConfig)
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

	scheduler, err := queue.NewScheduler(q, r.config.Schedule, r.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	defer scheduler.Stop()

	<-ctx.Done()
	return nil
}
