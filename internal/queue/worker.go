package queue

import (
	"context"
	"errors"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/arcspire/mediasync/internal/tasks"
	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// maxAttempts bounds how often a failed job is re-run before the worker lets
// its failed record stand. The first run counts as an attempt.
const maxAttempts = 2

// dequeueWait is how long one poll blocks before re-checking for shutdown.
const dequeueWait = 5 * time.Second

// Broker is the consumer side of the queue. Satisfied by [Queue].
type Broker interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

// JobRunner executes one task run to a terminal record. Satisfied by
// [tasks.Runner].
type JobRunner interface {
	Run(ctx context.Context, req tasks.RunRequest) (*models.JobRecord, error)
}

// Pruner trims terminal history after each run. Satisfied by the job history
// repository.
type Pruner interface {
	PruneArchivedJobs(ctx context.Context, keepCompleted, keepFailed int) (int, error)
}

// Event reports one lifecycle transition of a queued job.
type Event struct {
	JobID    string
	TaskName string
	Status   models.JobStatus
	Attempt  int
}

// Worker drains the queue one job at a time. Running exactly one worker per
// deployment is what serializes queued runs.
type Worker struct {
	broker  Broker
	runner  JobRunner
	cancels CancelStore
	history Pruner
	logger  *log.Logger

	retainCompleted int
	retainFailed    int

	events chan Event
}

// WorkerOpts contains configuration options for creating a [Worker].
type WorkerOpts struct {
	Broker  Broker
	Runner  JobRunner
	Cancels CancelStore
	History Pruner
	Logger  *log.Logger

	// RetainCompleted and RetainFailed bound the archived history kept after
	// each run. Zero picks the defaults of 100 and 500.
	RetainCompleted int
	RetainFailed    int
}

// NewWorker creates a queue worker.
func NewWorker(opts WorkerOpts) *Worker {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RetainCompleted <= 0 {
		opts.RetainCompleted = 100
	}
	if opts.RetainFailed <= 0 {
		opts.RetainFailed = 500
	}
	return &Worker{
		broker:          opts.Broker,
		runner:          opts.Runner,
		cancels:         opts.Cancels,
		history:         opts.History,
		logger:          opts.Logger.WithPrefix("worker"),
		retainCompleted: opts.RetainCompleted,
		retainFailed:    opts.RetainFailed,
		events:          make(chan Event, 16),
	}
}

// Events exposes lifecycle transitions for observers such as the CLI worker
// command. Sends never block; a slow observer just misses events.
func (w *Worker) Events() <-chan Event {
	return w.events
}

func (w *Worker) emit(e Event) {
	select {
	case w.events <- e:
	default:
	}
}

// Start blocks and processes jobs until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		job, err := w.broker.Dequeue(ctx, dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process runs one job to a terminal state, retrying once on failure.
// Cancelled runs are never retried: the user asked for the stop they got.
func (w *Worker) process(ctx context.Context, job *Job) {
	logger := w.logger.With("job", job.ID, "task", job.TaskName)
	logger.Info("job started", "triggered_by", job.TriggeredBy)

	attempt := 0
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second

	var record *models.JobRecord
	operation := func() error {
		attempt++
		w.emit(Event{JobID: job.ID, TaskName: job.TaskName, Status: models.JobActive, Attempt: attempt})

		rec, err := w.runner.Run(ctx, tasks.RunRequest{
			Name:        job.TaskName,
			Input:       job.Payload,
			TriggeredBy: job.TriggeredBy,
			UserID:      job.UserID,
			RunID:       job.ID,
			Cancelled:   w.cancelCheck(ctx, job.ID),
		})
		record = rec

		if rec != nil && rec.Status == models.JobCancelled {
			return backoff.Permanent(errors.New("cancelled"))
		}
		if errors.Is(err, shared.ErrUnknownTask) || errors.Is(err, shared.ErrInvalidInput) {
			// Re-running cannot fix a bad envelope.
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, maxAttempts-1), ctx))

	status := models.JobCompleted
	if record != nil {
		status = record.Status
	}
	switch {
	case err == nil:
		logger.Info("job completed", "attempts", attempt)
	case status == models.JobCancelled:
		logger.Warn("job cancelled", "attempts", attempt)
	default:
		logger.Error("job failed", "attempts", attempt, "error", err)
		status = models.JobFailed
	}
	w.emit(Event{JobID: job.ID, TaskName: job.TaskName, Status: status, Attempt: attempt})

	w.prune(ctx)
}

// cancelCheck adapts the cancel store to the cooperative check a run polls.
func (w *Worker) cancelCheck(ctx context.Context, jobID string) tasks.CancelCheck {
	if w.cancels == nil {
		return nil
	}
	return func() bool {
		return w.cancels.IsCancelled(ctx, jobID)
	}
}

func (w *Worker) prune(ctx context.Context) {
	if w.history == nil {
		return
	}
	deleted, err := w.history.PruneArchivedJobs(ctx, w.retainCompleted, w.retainFailed)
	if err != nil {
		w.logger.Error("history prune failed", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Debug("history pruned", "deleted", deleted)
	}
}
