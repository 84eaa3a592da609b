package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/go-redis/redis/v8"
)

// DefaultNamespace prefixes every redis key the queue touches.
const DefaultNamespace = "mediasync"

// Job is the wire envelope for one enqueued task run. The id assigned at
// enqueue time is reused as the JobRecord id so a pending job and its
// eventual terminal record are the same row.
type Job struct {
	ID          string             `json:"id"`
	TaskName    string             `json:"task_name"`
	Payload     map[string]any     `json:"payload,omitempty"`
	TriggeredBy models.TriggeredBy `json:"triggered_by"`
	UserID      string             `json:"user_id,omitempty"`
	EnqueuedAt  time.Time          `json:"enqueued_at"`
}

// Recorder persists the pending record at enqueue time. Implemented by the
// job history repository.
type Recorder interface {
	SaveJobRecord(ctx context.Context, record *models.JobRecord) error
}

// Queue is the producer side of the job queue, backed by a redis list.
type Queue struct {
	client    *redis.Client
	namespace string
	recorder  Recorder
}

// QueueOpts contains configuration options for creating a [Queue].
type QueueOpts struct {
	// RedisURL is a redis connection string, e.g. redis://localhost:6379/0.
	RedisURL  string
	Namespace string
	Recorder  Recorder
}

// NewQueue creates a queue producer from a redis URL.
func NewQueue(opts QueueOpts) (*Queue, error) {
	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrQueueUnavailable, err)
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	return &Queue{
		client:    redis.NewClient(redisOpts),
		namespace: opts.Namespace,
		recorder:  opts.Recorder,
	}, nil
}

func (q *Queue) jobsKey() string {
	return q.namespace + ":jobs"
}

// Enqueue pushes one job onto the queue and records it as pending. The
// returned job carries the assigned id, which callers hand back to users so
// they can follow or cancel the run.
func (q *Queue) Enqueue(ctx context.Context, job Job) (*Job, error) {
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	job.EnqueuedAt = time.Now().UTC()

	raw, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	if err := q.client.LPush(ctx, q.jobsKey(), raw).Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrQueueUnavailable, err)
	}

	if q.recorder != nil {
		record := &models.JobRecord{
			ID:          job.ID,
			TaskName:    job.TaskName,
			Status:      models.JobPending,
			TriggeredBy: job.TriggeredBy,
			UserID:      job.UserID,
			StartedAt:   job.EnqueuedAt,
		}
		if err := q.recorder.SaveJobRecord(ctx, record); err != nil {
			return nil, err
		}
	}

	return &job, nil
}

// Depth returns the number of jobs waiting on the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.jobsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", shared.ErrQueueUnavailable, err)
	}
	return n, nil
}

// Dequeue blocks up to timeout for the next job. A nil job with a nil error
// means the wait elapsed with the queue empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.jobsKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrQueueUnavailable, err)
	}

	// BRPop returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("malformed job envelope: %w", err)
	}
	return &job, nil
}

// Client exposes the underlying redis client so the cancel store can share
// the connection.
func (q *Queue) Client() *redis.Client {
	return q.client
}

// Close releases the underlying redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}
