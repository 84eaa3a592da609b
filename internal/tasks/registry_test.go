package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/arcspire/mediasync/internal/shared"
)

func noopHandler(_ context.Context, _ *Context, _ Input) error { return nil }

func TestRegistry(t *testing.T) {
	t.Run("Register And Resolve", func(t *testing.T) {
		reg := NewRegistry()
		def := &Definition{Name: "demo", Visibility: VisibilityAdmin, Handler: noopHandler}

		if err := reg.Register(def); err != nil {
			t.Fatalf("register: %v", err)
		}

		resolved, err := reg.Resolve("demo")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if resolved != def {
			t.Error("expected the registered definition back")
		}
	})

	t.Run("Duplicate Name Rejected", func(t *testing.T) {
		reg := NewRegistry()
		if err := reg.Register(&Definition{Name: "demo", Handler: noopHandler}); err != nil {
			t.Fatalf("first register: %v", err)
		}

		err := reg.Register(&Definition{Name: "demo", Handler: noopHandler})
		if !errors.Is(err, shared.ErrDuplicateTask) {
			t.Errorf("expected ErrDuplicateTask, got %v", err)
		}
	})

	t.Run("Unknown Name Is An Error", func(t *testing.T) {
		reg := NewRegistry()

		def, err := reg.Resolve("never-registered")
		if !errors.Is(err, shared.ErrUnknownTask) {
			t.Errorf("expected ErrUnknownTask, got %v", err)
		}
		if def != nil {
			t.Error("expected nil definition on unknown name")
		}
	})

	t.Run("Handler Required", func(t *testing.T) {
		reg := NewRegistry()
		if err := reg.Register(&Definition{Name: "no-handler"}); err == nil {
			t.Error("expected error for definition without handler")
		}
	})

	t.Run("Definitions Sorted By Name", func(t *testing.T) {
		reg := NewRegistry()
		for _, name := range []string{"zebra", "alpha", "mango"} {
			if err := reg.Register(&Definition{Name: name, Handler: noopHandler}); err != nil {
				t.Fatalf("register %s: %v", name, err)
			}
		}

		defs := reg.Definitions()
		if len(defs) != 3 {
			t.Fatalf("expected 3 definitions, got %d", len(defs))
		}
		for i, want := range []string{"alpha", "mango", "zebra"} {
			if defs[i].Name != want {
				t.Errorf("position %d: expected %s, got %s", i, want, defs[i].Name)
			}
		}
	})
}
