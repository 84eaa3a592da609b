package formatter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/arcspire/mediasync/internal/models"
)

func sampleRecord() *models.JobRecord {
	finished := time.Date(2026, 3, 14, 10, 31, 0, 0, time.UTC)
	return &models.JobRecord{
		ID:          "7f9c0c9e-1111-2222-3333-444455556666",
		TaskName:    "bulk-media-refresh",
		Status:      models.JobCompleted,
		TriggeredBy: models.TriggerCron,
		StartedAt:   finished.Add(-2 * time.Minute),
		FinishedAt:  &finished,
		Logs: []models.LogEntry{
			{Level: "info", Step: "movies", Message: "sweep finished", Fields: "processed=5", At: finished},
		},
		Metrics: map[string]string{"movies.success": "4", "movies.errors": "1"},
	}
}

func TestFormatJobList(t *testing.T) {
	t.Run("Renders One Line Per Record", func(t *testing.T) {
		out := FormatJobList([]*models.JobRecord{sampleRecord()})

		if !strings.Contains(out, "bulk-media-refresh") {
			t.Errorf("expected task name in output:\n%s", out)
		}
		if !strings.Contains(out, "completed") {
			t.Errorf("expected status in output:\n%s", out)
		}
		if !strings.Contains(out, "cron") {
			t.Errorf("expected trigger in output:\n%s", out)
		}
	})

	t.Run("Empty History Gets A Placeholder", func(t *testing.T) {
		out := FormatJobList(nil)
		if !strings.Contains(out, "no jobs recorded") {
			t.Errorf("expected placeholder, got:\n%s", out)
		}
	})
}

func TestFormatJobDetail(t *testing.T) {
	record := sampleRecord()
	out := FormatJobDetail(record)

	for _, want := range []string{record.ID, "movies.success: 4", "sweep finished", "processed=5"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	t.Run("Failed Run Shows Error", func(t *testing.T) {
		failed := sampleRecord()
		failed.Status = models.JobFailed
		failed.ErrorMessage = "provider unavailable"

		out := FormatJobDetail(failed)
		if !strings.Contains(out, "provider unavailable") {
			t.Errorf("expected error message in output:\n%s", out)
		}
	})
}

func TestFormatMediaItem(t *testing.T) {
	synced := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	item := &models.MediaItem{
		ID:           "row-1",
		MediaType:    models.Movies,
		APIID:        "603",
		Title:        "The Matrix",
		Description:  "a film",
		ReleaseYear:  1999,
		Rating:       8.7,
		Missing:      true,
		LastSyncedAt: &synced,
	}

	out := FormatMediaItem(item)
	for _, want := range []string{"The Matrix (1999)", "8.7", "no longer available upstream", "a film"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestToJSON(t *testing.T) {
	data, err := ToJSON(sampleRecord())
	if err != nil {
		t.Fatalf("to json: %v", err)
	}

	var decoded models.JobRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TaskName != "bulk-media-refresh" {
		t.Errorf("round trip lost task name: %q", decoded.TaskName)
	}
}
