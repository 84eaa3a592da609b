package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
)

// memoryHistory captures persisted records for assertions.
type memoryHistory struct {
	records []*models.JobRecord
	failSave bool
}

func (m *memoryHistory) SaveJobRecord(_ context.Context, record *models.JobRecord) error {
	if m.failSave {
		return fmt.Errorf("history unavailable")
	}
	m.records = append(m.records, record)
	return nil
}

func newTestRunner(history *memoryHistory, defs ...*Definition) *Runner {
	reg := NewRegistry()
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			panic(err)
		}
	}
	return NewRunner(reg, history, shared.NewLogger(io.Discard))
}

func TestRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed Run Persists One Terminal Record", func(t *testing.T) {
		history := &memoryHistory{}
		runner := newTestRunner(history, &Definition{
			Name: "ok",
			Handler: func(_ context.Context, run *Context, _ Input) error {
				run.Metric("touched", 1)
				return nil
			},
		})

		record, err := runner.Run(ctx, RunRequest{Name: "ok", TriggeredBy: models.TriggerCLI})
		if err != nil {
			t.Fatalf("run: %v", err)
		}

		if len(history.records) != 1 {
			t.Fatalf("expected exactly one persisted record, got %d", len(history.records))
		}
		if record.Status != models.JobCompleted {
			t.Errorf("expected completed, got %s", record.Status)
		}
		if record.FinishedAt == nil {
			t.Error("expected non-nil finish time")
		}
	})

	t.Run("Failed Run Persists Partial State", func(t *testing.T) {
		history := &memoryHistory{}
		runner := newTestRunner(history, &Definition{
			Name: "fails",
			Handler: func(_ context.Context, run *Context, _ Input) error {
				run.Increment("progress")
				return run.Step("explode", func() error {
					return fmt.Errorf("kaput")
				})
			},
		})

		record, err := runner.Run(ctx, RunRequest{Name: "fails", TriggeredBy: models.TriggerCLI})
		if err == nil {
			t.Fatal("expected error")
		}

		if record.Status != models.JobFailed {
			t.Errorf("expected failed, got %s", record.Status)
		}
		if record.ErrorMessage == "" {
			t.Error("expected error message on record")
		}
		if record.Metrics["progress"] != "1" {
			t.Errorf("expected partial metrics to survive, got %v", record.Metrics)
		}
		if len(history.records) != 1 {
			t.Errorf("expected exactly one persisted record, got %d", len(history.records))
		}
	})

	t.Run("Panic Becomes A Failed Record", func(t *testing.T) {
		history := &memoryHistory{}
		runner := newTestRunner(history, &Definition{
			Name: "panics",
			Handler: func(_ context.Context, _ *Context, _ Input) error {
				panic("unhandled")
			},
		})

		record, err := runner.Run(ctx, RunRequest{Name: "panics", TriggeredBy: models.TriggerCLI})
		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
		if record.Status != models.JobFailed {
			t.Errorf("expected failed, got %s", record.Status)
		}
		if len(history.records) != 1 {
			t.Errorf("expected exactly one persisted record, got %d", len(history.records))
		}
	})

	t.Run("Cancelled Flag Yields Cancelled Status", func(t *testing.T) {
		history := &memoryHistory{}
		runner := newTestRunner(history, &Definition{
			Name: "cancellable",
			Handler: func(_ context.Context, run *Context, _ Input) error {
				// Cooperative handler: sees the flag and exits early.
				if run.Cancelled() {
					return nil
				}
				return fmt.Errorf("should not get here")
			},
		})

		record, err := runner.Run(ctx, RunRequest{
			Name:        "cancellable",
			TriggeredBy: models.TriggerUser,
			Cancelled:   func() bool { return true },
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if record.Status != models.JobCancelled {
			t.Errorf("expected cancelled, got %s", record.Status)
		}
	})

	t.Run("Validation Failure Is Recorded And Not Run", func(t *testing.T) {
		history := &memoryHistory{}
		ran := false
		runner := newTestRunner(history, &Definition{
			Name:   "strict",
			Schema: Schema{Fields: []Field{{Name: "userId", Type: FieldString, Required: true}}},
			Handler: func(_ context.Context, _ *Context, _ Input) error {
				ran = true
				return nil
			},
		})

		_, err := runner.Run(ctx, RunRequest{Name: "strict", TriggeredBy: models.TriggerCLI})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if ran {
			t.Error("handler must not run on invalid input")
		}
		if len(history.records) != 1 || history.records[0].Status != models.JobFailed {
			t.Errorf("expected one failed record, got %+v", history.records)
		}
	})

	t.Run("Unknown Task", func(t *testing.T) {
		runner := newTestRunner(&memoryHistory{})

		_, err := runner.Run(ctx, RunRequest{Name: "ghost", TriggeredBy: models.TriggerCLI})
		if !errors.Is(err, shared.ErrUnknownTask) {
			t.Errorf("expected ErrUnknownTask, got %v", err)
		}
	})

	t.Run("Queued RunID Is Reused", func(t *testing.T) {
		history := &memoryHistory{}
		runner := newTestRunner(history, &Definition{Name: "ok", Handler: noopHandler})

		record, err := runner.Run(ctx, RunRequest{Name: "ok", TriggeredBy: models.TriggerUser, RunID: "job-123"})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if record.ID != "job-123" {
			t.Errorf("expected record under job-123, got %s", record.ID)
		}
	})
}
