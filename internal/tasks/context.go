package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
	"github.com/charmbracelet/log"
)

// CancelCheck reports whether cancellation has been requested for a run.
// Cancellation is advisory: a handler that never calls it runs to completion.
type CancelCheck func() bool

// Context is the per-run object handlers are written against: grouped steps,
// last-write-wins metrics, a capturing log buffer and a cancellation check.
//
// The capturing buffer, not the live process log stream, is what gets
// persisted with the JobRecord; entries are mirrored to the process logger so
// operators still see them live. A Context is created when a run starts, is
// never shared across concurrent runs, and is discarded once flushed into a
// JobRecord.
type Context struct {
	runID       string
	taskName    string
	triggeredBy models.TriggeredBy
	userID      string
	startedAt   time.Time

	mu      sync.Mutex
	steps   []string
	metrics map[string]string
	logs    []models.LogEntry

	logger    *log.Logger
	cancelled CancelCheck
}

// ContextOpts contains configuration options for creating a run [Context].
type ContextOpts struct {
	TaskName    string
	TriggeredBy models.TriggeredBy
	UserID      string
	// RunID defaults to a fresh opaque token; queued runs pass their job id so
	// the record lands under the id the enqueuer saw.
	RunID     string
	Logger    *log.Logger
	Cancelled CancelCheck
}

// NewContext creates the execution context for a single run.
func NewContext(opts ContextOpts) *Context {
	if opts.RunID == "" {
		opts.RunID = shared.GenerateID()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Context{
		runID:       opts.RunID,
		taskName:    opts.TaskName,
		triggeredBy: opts.TriggeredBy,
		userID:      opts.UserID,
		startedAt:   time.Now(),
		metrics:     make(map[string]string),
		logger:      shared.WithLogger(opts.Logger, "task", opts.TaskName, "run", opts.RunID),
		cancelled:   opts.Cancelled,
	}
}

// RunID returns the opaque token minted for this run.
func (c *Context) RunID() string { return c.runID }

// Step runs fn with its logs scoped under label. An error is logged with the
// label attached and returned wrapped, terminating the run as failed unless
// the caller decides otherwise. Steps nest.
func (c *Context) Step(label string, fn func() error) error {
	c.mu.Lock()
	c.steps = append(c.steps, label)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.steps = c.steps[:len(c.steps)-1]
		c.mu.Unlock()
	}()

	if err := fn(); err != nil {
		c.Error("step failed", "error", err)
		return fmt.Errorf("step %q: %w", label, err)
	}
	return nil
}

// Metric records a named value with overwrite semantics; the last call wins.
func (c *Context) Metric(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics[name] = fmt.Sprint(value)
}

// Increment adds one to a counter metric, treating an unset counter as zero.
func (c *Context) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.Atoi(c.metrics[name])
	c.metrics[name] = strconv.Itoa(n + 1)
}

// Info appends an info entry to the capturing buffer.
func (c *Context) Info(msg string, fields ...any) { c.log("info", msg, fields...) }

// Warn appends a warning entry to the capturing buffer.
func (c *Context) Warn(msg string, fields ...any) { c.log("warn", msg, fields...) }

// Error appends an error entry to the capturing buffer.
func (c *Context) Error(msg string, fields ...any) { c.log("error", msg, fields...) }

// Cancelled reports whether cancellation was requested. Long-running handlers
// check it cooperatively between items; there is no preemption.
func (c *Context) Cancelled() bool {
	if c.cancelled == nil {
		return false
	}
	return c.cancelled()
}

// Snapshot flushes the run into a JobRecord with the given terminal status.
func (c *Context) Snapshot(status models.JobStatus, errMsg string) *models.JobRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := &models.JobRecord{
		ID:           c.runID,
		TaskName:     c.taskName,
		Status:       status,
		TriggeredBy:  c.triggeredBy,
		UserID:       c.userID,
		ErrorMessage: errMsg,
		StartedAt:    c.startedAt,
		Logs:         append([]models.LogEntry(nil), c.logs...),
		Metrics:      make(map[string]string, len(c.metrics)),
	}
	for k, v := range c.metrics {
		record.Metrics[k] = v
	}

	if status.Terminal() {
		now := time.Now()
		record.FinishedAt = &now
	}
	return record
}

func (c *Context) log(level, msg string, fields ...any) {
	c.mu.Lock()
	step := strings.Join(c.steps, "/")
	c.logs = append(c.logs, models.LogEntry{
		Level:   level,
		Step:    step,
		Message: msg,
		Fields:  formatFields(fields),
		At:      time.Now(),
	})
	c.mu.Unlock()

	mirrored := fields
	if step != "" {
		mirrored = append(append([]any(nil), fields...), "step", step)
	}
	switch level {
	case "warn":
		c.logger.Warn(msg, mirrored...)
	case "error":
		c.logger.Error(msg, mirrored...)
	default:
		c.logger.Info(msg, mirrored...)
	}
}

// formatFields renders key-value pairs as "k=v" strings for persistence.
func formatFields(fields []any) string {
	if len(fields) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := 0; i+1 < len(fields); i += 2 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%v", fields[len(fields)-1])
	}
	return sb.String()
}
