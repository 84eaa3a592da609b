package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arcspire/mediasync/internal/models"
)

// StatisticsRepository recomputes a user's catalog statistics on demand. The
// recalculate-statistics task drives it after bulk changes.
type StatisticsRepository struct {
	db *sql.DB
}

// NewStatisticsRepository creates a new StatisticsRepository with the given database connection
func NewStatisticsRepository(db *sql.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Recalculate rebuilds the per-category counters for one user from the
// catalog. The previous numbers are overwritten; statistics are derived
// state, never the source of truth.
func (r *StatisticsRepository) Recalculate(ctx context.Context, userID string) error {
	now := time.Now().UTC()

	// Counts are read through the media repositories before the write
	// transaction opens; statistics are derived state and tolerate that.
	counts := make(map[models.MediaType][2]int, len(models.AllMediaTypes()))
	for _, mediaType := range models.AllMediaTypes() {
		active, missing, err := NewMediaRepository(r.db, mediaType).CountByStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to count %s items: %w", mediaType, err)
		}
		counts[mediaType] = [2]int{active, missing}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mediaType := range models.AllMediaTypes() {
		active, missing := counts[mediaType][0], counts[mediaType][1]

		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_statistics (user_id, media_type, active, missing, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, media_type) DO UPDATE SET
				active = excluded.active,
				missing = excluded.missing,
				updated_at = excluded.updated_at
		`, userID, mediaType, active, missing, now)
		if err != nil {
			return fmt.Errorf("failed to store %s statistics: %w", mediaType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit statistics: %w", err)
	}

	return nil
}
