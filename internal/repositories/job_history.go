package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
)

// JobHistoryRepository persists job records. The runner writes one terminal
// record per run; the queue writes a pending record at enqueue time under the
// same id, so SaveJobRecord upserts.
type JobHistoryRepository struct {
	db *sql.DB
}

// NewJobHistoryRepository creates a new JobHistoryRepository with the given database connection
func NewJobHistoryRepository(db *sql.DB) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// SaveJobRecord upserts one job record with its captured logs and metrics.
// Logs and metrics are replaced rather than appended so saving the terminal
// record over its pending predecessor leaves exactly one truth.
func (r *JobHistoryRepository) SaveJobRecord(ctx context.Context, record *models.JobRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_history (id, task_name, status, triggered_by, user_id, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, record.ID, record.TaskName, record.Status, record.TriggeredBy, record.UserID,
		record.ErrorMessage, record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert job record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM job_logs WHERE job_id = ?", record.ID); err != nil {
		return fmt.Errorf("failed to clear job logs: %w", err)
	}
	for _, entry := range record.Logs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_logs (job_id, level, step, message, fields, logged_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, record.ID, entry.Level, entry.Step, entry.Message, entry.Fields, entry.At)
		if err != nil {
			return fmt.Errorf("failed to insert job log: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM job_metrics WHERE job_id = ?", record.ID); err != nil {
		return fmt.Errorf("failed to clear job metrics: %w", err)
	}
	for name, value := range record.Metrics {
		_, err := tx.ExecContext(ctx, "INSERT INTO job_metrics (job_id, name, value) VALUES (?, ?, ?)", record.ID, name, value)
		if err != nil {
			return fmt.Errorf("failed to insert job metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job record: %w", err)
	}

	return nil
}

// GetJob retrieves one job record with its logs and metrics.
func (r *JobHistoryRepository) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	query := `
		SELECT id, task_name, status, triggered_by, user_id, error_message, started_at, finished_at
		FROM job_history
		WHERE id = ?
	`

	record, err := r.scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT level, step, message, fields, logged_at
		FROM job_logs
		WHERE job_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query job logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry  models.LogEntry
			step   sql.NullString
			fields sql.NullString
		)
		if err := rows.Scan(&entry.Level, &step, &entry.Message, &fields, &entry.At); err != nil {
			return nil, fmt.Errorf("failed to scan job log: %w", err)
		}
		entry.Step = step.String
		entry.Fields = fields.String
		record.Logs = append(record.Logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	metrics, err := r.db.QueryContext(ctx, "SELECT name, value FROM job_metrics WHERE job_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query job metrics: %w", err)
	}
	defer metrics.Close()

	for metrics.Next() {
		var name, value string
		if err := metrics.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan job metric: %w", err)
		}
		if record.Metrics == nil {
			record.Metrics = make(map[string]string)
		}
		record.Metrics[name] = value
	}
	if err := metrics.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return record, nil
}

// ListArchivedJobs returns terminal records, most recent first. Limit 0 means
// no limit. Pending and active records are live queue state, not history, and
// are excluded.
func (r *JobHistoryRepository) ListArchivedJobs(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	query := `
		SELECT id, task_name, status, triggered_by, user_id, error_message, started_at, finished_at
		FROM job_history
		WHERE status IN ('completed', 'failed', 'cancelled')
		ORDER BY started_at DESC
	`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var records []*models.JobRecord
	for rows.Next() {
		record, err := r.scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// DeleteArchivedJob removes one terminal record. Pending and active records
// cannot be deleted; cancel the job instead.
func (r *JobHistoryRepository) DeleteArchivedJob(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM job_history
		WHERE id = ? AND status IN ('completed', 'failed', 'cancelled')
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	return nil
}

// PruneArchivedJobs trims terminal history down to the newest keepCompleted
// completed records and keepFailed failed or cancelled records, returning how
// many were deleted. Cascades take the logs and metrics along.
func (r *JobHistoryRepository) PruneArchivedJobs(ctx context.Context, keepCompleted, keepFailed int) (int, error) {
	deleted := 0

	for _, p := range []struct {
		statuses string
		keep     int
	}{
		{"('completed')", keepCompleted},
		{"('failed', 'cancelled')", keepFailed},
	} {
		query := fmt.Sprintf(`
			DELETE FROM job_history
			WHERE status IN %s AND id NOT IN (
				SELECT id FROM job_history
				WHERE status IN %s
				ORDER BY started_at DESC
				LIMIT ?
			)
		`, p.statuses, p.statuses)

		result, err := r.db.ExecContext(ctx, query, p.keep)
		if err != nil {
			return deleted, fmt.Errorf("failed to prune job history: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("failed to get affected rows: %w", err)
		}
		deleted += int(n)
	}

	return deleted, nil
}

// scanRecord scans a single [sql.Row] into a [models.JobRecord]
func (r *JobHistoryRepository) scanRecord(row *sql.Row) (*models.JobRecord, error) {
	var (
		record     models.JobRecord
		userID     sql.NullString
		errMessage sql.NullString
		finishedAt sql.NullTime
	)

	err := row.Scan(&record.ID, &record.TaskName, &record.Status, &record.TriggeredBy,
		&userID, &errMessage, &record.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: job record", shared.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job record: %w", err)
	}

	record.UserID = userID.String
	record.ErrorMessage = errMessage.String
	if finishedAt.Valid {
		record.FinishedAt = &finishedAt.Time
	}

	return &record, nil
}

// scanRecordRows scans a row from [sql.Rows] into a [models.JobRecord]
func (r *JobHistoryRepository) scanRecordRows(rows *sql.Rows) (*models.JobRecord, error) {
	var (
		record     models.JobRecord
		userID     sql.NullString
		errMessage sql.NullString
		finishedAt sql.NullTime
	)

	err := rows.Scan(&record.ID, &record.TaskName, &record.Status, &record.TriggeredBy,
		&userID, &errMessage, &record.StartedAt, &finishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job record: %w", err)
	}

	record.UserID = userID.String
	record.ErrorMessage = errMessage.String
	if finishedAt.Valid {
		record.FinishedAt = &finishedAt.Time
	}

	return &record, nil
}
