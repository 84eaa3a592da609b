package models

import (
	"fmt"
	"time"
)

// MediaType identifies a media category tracked in the local catalog.
type MediaType string

const (
	Movies MediaType = "movies"
	Shows  MediaType = "shows"
	Games  MediaType = "games"
	Books  MediaType = "books"
)

// AllMediaTypes returns every tracked category in a stable order.
func AllMediaTypes() []MediaType {
	return []MediaType{Movies, Shows, Games, Books}
}

// ParseMediaType validates a raw string against the known categories.
func ParseMediaType(raw string) (MediaType, error) {
	for _, mt := range AllMediaTypes() {
		if string(mt) == raw {
			return mt, nil
		}
	}
	return "", fmt.Errorf("unknown media type %q", raw)
}

// Credit is a single person attached to an item (author, director, developer...).
type Credit struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// MediaDetails is the normalized shape a provider transformer produces from a
// raw API response. It is the only thing the sync layer hands to repositories.
type MediaDetails struct {
	APIID       string    `json:"api_id"`
	MediaType   MediaType `json:"media_type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ReleaseYear int       `json:"release_year,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Credits     []Credit  `json:"credits,omitempty"`
}

// Validate checks that the details carry the minimum identity needed to store them.
func (d *MediaDetails) Validate() error {
	if d.APIID == "" {
		return fmt.Errorf("media details missing api id")
	}
	if d.MediaType == "" {
		return fmt.Errorf("media details missing media type")
	}
	if d.Title == "" {
		return fmt.Errorf("media details missing title")
	}
	return nil
}

// MediaItem is one tracked catalog row. Missing marks items the provider no
// longer serves; they stay in the catalog but are excluded from refresh sweeps.
type MediaItem struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"-"`
	MediaType    MediaType  `json:"media_type"`
	APIID        string     `json:"api_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	ReleaseYear  int        `json:"release_year,omitempty"`
	Rating       float64    `json:"rating,omitempty"`
	Missing      bool       `json:"missing"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// JobStatus is the lifecycle state of a job run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// TriggeredBy records which surface started a job.
type TriggeredBy string

const (
	TriggerCron      TriggeredBy = "cron"
	TriggerCLI       TriggeredBy = "cli"
	TriggerUser      TriggeredBy = "user"
	TriggerDashboard TriggeredBy = "dashboard"
)

// LogEntry is a single captured log line. The capturing buffer, not the live
// process log stream, is what gets persisted with a JobRecord.
type LogEntry struct {
	Level   string    `json:"level"`
	Step    string    `json:"step,omitempty"`
	Message string    `json:"message"`
	Fields  string    `json:"fields,omitempty"`
	At      time.Time `json:"at"`
}

// JobRecord tracks one queued or direct invocation of a task.
type JobRecord struct {
	ID           string            `json:"id"`
	TaskName     string            `json:"task_name"`
	Status       JobStatus         `json:"status"`
	TriggeredBy  TriggeredBy       `json:"triggered_by"`
	UserID       string            `json:"user_id,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	Logs         []LogEntry        `json:"logs,omitempty"`
	Metrics      map[string]string `json:"metrics,omitempty"`
}

// Validate checks record identity and the terminality invariant: a terminal
// status requires a finish time, a non-terminal one forbids it.
func (r *JobRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("job record missing id")
	}
	if r.TaskName == "" {
		return fmt.Errorf("job record missing task name")
	}
	if r.Status.Terminal() && r.FinishedAt == nil {
		return fmt.Errorf("terminal job record missing finish time")
	}
	if !r.Status.Terminal() && r.FinishedAt != nil {
		return fmt.Errorf("running job record has finish time")
	}
	return nil
}
