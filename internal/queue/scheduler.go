package queue

import (
	"context"
	"fmt"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Enqueuer is the producer interface the scheduler drives. Satisfied by
// [Queue].
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (*Job, error)
}

// Scheduler enqueues configured tasks on cron expressions. It only produces
// jobs; the worker picks them up like any other.
type Scheduler struct {
	cron   *cron.Cron
	queue  Enqueuer
	logger *log.Logger
}

// NewScheduler builds a scheduler from the configured entries. Invalid cron
// expressions and blank task names fail up front rather than silently never
// firing.
func NewScheduler(queue Enqueuer, entries []shared.ScheduleConfig, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Scheduler{
		cron:   cron.New(),
		queue:  queue,
		logger: logger.WithPrefix("scheduler"),
	}

	for _, entry := range entries {
		if entry.Task == "" {
			return nil, fmt.Errorf("%w: schedule entry with empty task", shared.ErrInvalidConfig)
		}
		entry := entry
		_, err := s.cron.AddFunc(entry.Cron, func() {
			s.fire(entry)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: schedule for %s: %s", shared.ErrInvalidConfig, entry.Task, err)
		}
	}
	return s, nil
}

func (s *Scheduler) fire(entry shared.ScheduleConfig) {
	job, err := s.queue.Enqueue(context.Background(), Job{
		TaskName:    entry.Task,
		Payload:     entry.Params,
		TriggeredBy: models.TriggerCron,
	})
	if err != nil {
		s.logger.Error("scheduled enqueue failed", "task", entry.Task, "error", err)
		return
	}
	s.logger.Info("scheduled job enqueued", "task", entry.Task, "job", job.ID)
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for in-flight fires to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
