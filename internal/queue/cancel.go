package queue

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// cancelTTL bounds how long a cancellation flag outlives its request. A flag
// for a job that never gets picked up should not linger forever.
const cancelTTL = 30 * time.Minute

// CancelStore tracks cancellation requests by job id. The worker polls it
// between items through the run's cancel check.
type CancelStore interface {
	// RequestCancel flags a job for cooperative cancellation.
	RequestCancel(ctx context.Context, jobID string) error

	// IsCancelled reports whether a cancellation was requested for the job.
	IsCancelled(ctx context.Context, jobID string) bool
}

// RedisCancelStore keeps cancellation flags in redis so a cancel issued from
// one process reaches the worker in another.
type RedisCancelStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisCancelStore creates a cancel store sharing the queue's redis client.
func NewRedisCancelStore(client *redis.Client, namespace string) *RedisCancelStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisCancelStore{client: client, namespace: namespace}
}

func (s *RedisCancelStore) key(jobID string) string {
	return s.namespace + ":cancel:" + jobID
}

func (s *RedisCancelStore) RequestCancel(ctx context.Context, jobID string) error {
	return s.client.Set(ctx, s.key(jobID), "1", cancelTTL).Err()
}

// IsCancelled treats redis errors as not cancelled. A flaky flag read must
// not abort an otherwise healthy run.
func (s *RedisCancelStore) IsCancelled(ctx context.Context, jobID string) bool {
	v, err := s.client.Get(ctx, s.key(jobID)).Result()
	return err == nil && v == "1"
}

// MemoryCancelStore is an in-process [CancelStore] for direct runs and tests.
type MemoryCancelStore struct {
	mu    sync.Mutex
	flags map[string]bool
}

func NewMemoryCancelStore() *MemoryCancelStore {
	return &MemoryCancelStore{flags: make(map[string]bool)}
}

func (s *MemoryCancelStore) RequestCancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[jobID] = true
	return nil
}

func (s *MemoryCancelStore) IsCancelled(_ context.Context, jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[jobID]
}
