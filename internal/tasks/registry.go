package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arcspire/mediasync/internal/shared"
)

// Visibility controls which surfaces may trigger a task.
type Visibility string

const (
	VisibilityUser  Visibility = "user"
	VisibilityAdmin Visibility = "admin"
)

// Handler is the function executed for one task run. It receives the per-run
// [Context] and input that already passed schema validation.
type Handler func(ctx context.Context, run *Context, input Input) error

// Definition declares a named unit of work. Definitions are immutable once
// registered and are registered exactly once at process start.
type Definition struct {
	Name        string
	Visibility  Visibility
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry resolves task definitions by name. There is a single registration
// point validated at startup; nothing mutates the registry afterwards.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. A duplicate name is a startup error, never a
// silent overwrite.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("task definition requires a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("task %q has no handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateTask, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Resolve looks up a definition by name. An unknown name is an error, never a
// nil result.
func (r *Registry) Resolve(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownTask, name)
	}
	return def, nil
}

// Definitions returns all registered definitions sorted by name.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
