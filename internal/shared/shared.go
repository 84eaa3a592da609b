// package shared defines helpers used across the catalog, queue and task packages
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger builds the process [log.Logger] writing to w, with timestamps and
// caller reporting on. A nil writer falls back to [os.Stderr].
//
// Components derive children from this one ([WithLogger], WithPrefix) rather
// than constructing their own.
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger derives a child [log.Logger] carrying the given key-value pairs
// on every entry. Task runs use it to stamp their id on all run logging.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel adjusts the [log.Level] of l in place.
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a fresh v4 [uuid.UUID] string. Job and run ids come
// from here.
func GenerateID() string {
	return uuid.New().String()
}
