// package formatter renders job history and catalog items for CLI output,
// in styled text or JSON.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/charmbracelet/lipgloss"
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
}

func NewPalette(t, s, e, w, d string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		dim:   NewEm(d),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// statusStyle picks the palette entry for a job status.
func statusStyle(status models.JobStatus) lipgloss.Style {
	switch status {
	case models.JobCompleted:
		return styles.ok
	case models.JobFailed:
		return styles.err
	case models.JobCancelled, models.JobPending:
		return styles.warn
	default:
		return styles.dim
	}
}

// FormatJobList renders job records as an aligned text table, newest first as
// given. Returns a placeholder line when there is nothing to show.
func FormatJobList(records []*models.JobRecord) string {
	if len(records) == 0 {
		return styles.dim.Render("no jobs recorded") + "\n"
	}

	var buf bytes.Buffer
	buf.WriteString(styles.title.Render("Job History") + "\n\n")
	buf.WriteString(fmt.Sprintf("%-36s  %-24s  %-10s  %-9s  %s\n", "ID", "TASK", "STATUS", "TRIGGER", "STARTED"))

	for _, record := range records {
		status := statusStyle(record.Status).Render(fmt.Sprintf("%-10s", record.Status))
		buf.WriteString(fmt.Sprintf("%-36s  %-24s  %s  %-9s  %s\n",
			record.ID,
			record.TaskName,
			status,
			record.TriggeredBy,
			record.StartedAt.Local().Format(time.DateTime),
		))
	}

	return buf.String()
}

// FormatJobDetail renders one job record with its metrics and captured logs.
func FormatJobDetail(record *models.JobRecord) string {
	var buf bytes.Buffer

	buf.WriteString(styles.title.Render(record.TaskName) + "\n")
	buf.WriteString(fmt.Sprintf("ID:        %s\n", record.ID))
	buf.WriteString(fmt.Sprintf("Status:    %s\n", statusStyle(record.Status).Render(string(record.Status))))
	buf.WriteString(fmt.Sprintf("Trigger:   %s\n", record.TriggeredBy))
	if record.UserID != "" {
		buf.WriteString(fmt.Sprintf("User:      %s\n", record.UserID))
	}
	buf.WriteString(fmt.Sprintf("Started:   %s\n", record.StartedAt.Local().Format(time.DateTime)))
	if record.FinishedAt != nil {
		buf.WriteString(fmt.Sprintf("Finished:  %s (%s)\n",
			record.FinishedAt.Local().Format(time.DateTime),
			record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond)))
	}
	if record.ErrorMessage != "" {
		buf.WriteString(fmt.Sprintf("Error:     %s\n", styles.err.Render(record.ErrorMessage)))
	}

	if len(record.Metrics) > 0 {
		buf.WriteString("\n" + styles.title.Render("Metrics") + "\n")
		for _, name := range sortedKeys(record.Metrics) {
			buf.WriteString(fmt.Sprintf("  %s: %s\n", name, record.Metrics[name]))
		}
	}

	if len(record.Logs) > 0 {
		buf.WriteString("\n" + styles.title.Render("Logs") + "\n")
		for _, entry := range record.Logs {
			step := ""
			if entry.Step != "" {
				step = styles.dim.Render("["+entry.Step+"] ")
			}
			line := fmt.Sprintf("  %s %-5s %s%s", entry.At.Local().Format("15:04:05"), entry.Level, step, entry.Message)
			if entry.Fields != "" {
				line += " " + styles.dim.Render(entry.Fields)
			}
			buf.WriteString(line + "\n")
		}
	}

	return buf.String()
}

// FormatMediaItem renders one catalog row.
func FormatMediaItem(item *models.MediaItem) string {
	var buf bytes.Buffer

	title := item.Title
	if item.ReleaseYear > 0 {
		title = fmt.Sprintf("%s (%d)", title, item.ReleaseYear)
	}
	buf.WriteString(styles.title.Render(title) + "\n")
	buf.WriteString(fmt.Sprintf("Type:    %s\n", item.MediaType))
	buf.WriteString(fmt.Sprintf("ID:      %s\n", item.APIID))
	if item.Rating > 0 {
		buf.WriteString(fmt.Sprintf("Rating:  %.1f\n", item.Rating))
	}
	if item.Missing {
		buf.WriteString(styles.warn.Render("no longer available upstream") + "\n")
	}
	if item.LastSyncedAt != nil {
		buf.WriteString(styles.dim.Render(fmt.Sprintf("last synced %s", item.LastSyncedAt.Local().Format(time.DateTime))) + "\n")
	}
	if item.Description != "" {
		buf.WriteString("\n" + item.Description + "\n")
	}

	return buf.String()
}

// ToJSON renders any value as indented JSON for machine-readable output.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
