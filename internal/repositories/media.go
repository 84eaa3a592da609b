package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
)

// MediaRepository persists one media category of the catalog. It implements
// the sync layer's Repository interface, so each category's sync service gets
// its own instance over the shared database.
type MediaRepository struct {
	db        *sql.DB
	mediaType models.MediaType
}

// NewMediaRepository creates a new MediaRepository scoped to one category.
func NewMediaRepository(db *sql.DB, mediaType models.MediaType) *MediaRepository {
	return &MediaRepository{db: db, mediaType: mediaType}
}

// IDsDueForRefresh returns provider ids of items due for a refresh sweep,
// stalest first. Items never synced sort before everything else. Missing
// items are excluded; they left the provider and have nothing to refresh.
func (r *MediaRepository) IDsDueForRefresh(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT api_id
		FROM media_items
		WHERE media_type = ? AND missing = 0
		ORDER BY last_synced_at IS NOT NULL, last_synced_at ASC
	`

	args := []any{r.mediaType}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan api id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// UpsertDetails stores fetched details, inserting the item on first sight and
// refreshing it afterwards. Genres and credits are replaced wholesale so the
// row always mirrors the provider's latest response. A successful upsert also
// stamps last_synced_at and clears the missing flag, covering items that
// reappear upstream.
func (r *MediaRepository) UpsertDetails(ctx context.Context, details *models.MediaDetails) (*models.MediaItem, error) {
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if details.MediaType != r.mediaType {
		return nil, fmt.Errorf("media type mismatch: repository holds %s, details carry %s", r.mediaType, details.MediaType)
	}

	now := time.Now().UTC()

	item, err := r.GetByAPIID(ctx, details.APIID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if item == nil {
		sequence, err := NextSequence(r.db, "media_items")
		if err != nil {
			return nil, fmt.Errorf("failed to generate sequence: %w", err)
		}

		item = &models.MediaItem{
			ID:        shared.GenerateID(),
			Sequence:  sequence,
			MediaType: r.mediaType,
			APIID:     details.APIID,
			CreatedAt: now,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO media_items (id, sequence, media_type, api_id, title, description, release_year, rating, missing, last_synced_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		`, item.ID, item.Sequence, item.MediaType, item.APIID, details.Title, details.Description, details.ReleaseYear, details.Rating, now, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert media item: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE media_items
			SET title = ?, description = ?, release_year = ?, rating = ?, missing = 0, last_synced_at = ?, updated_at = ?
			WHERE id = ?
		`, details.Title, details.Description, details.ReleaseYear, details.Rating, now, now, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update media item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM media_genres WHERE media_id = ?", item.ID); err != nil {
		return nil, fmt.Errorf("failed to clear genres: %w", err)
	}
	for _, genre := range details.Genres {
		if _, err := tx.ExecContext(ctx, "INSERT INTO media_genres (media_id, genre) VALUES (?, ?)", item.ID, genre); err != nil {
			return nil, fmt.Errorf("failed to insert genre: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM media_credits WHERE media_id = ?", item.ID); err != nil {
		return nil, fmt.Errorf("failed to clear credits: %w", err)
	}
	for _, credit := range details.Credits {
		if _, err := tx.ExecContext(ctx, "INSERT INTO media_credits (media_id, name, role) VALUES (?, ?, ?)", item.ID, credit.Name, credit.Role); err != nil {
			return nil, fmt.Errorf("failed to insert credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}

	item.Title = details.Title
	item.Description = details.Description
	item.ReleaseYear = details.ReleaseYear
	item.Rating = details.Rating
	item.Missing = false
	item.LastSyncedAt = &now
	item.UpdatedAt = now

	return item, nil
}

// MarkMissing flags an item the provider stopped serving. The row stays in
// the catalog for anyone who tracked it but drops out of refresh sweeps.
func (r *MediaRepository) MarkMissing(ctx context.Context, apiID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE media_items
		SET missing = 1, updated_at = ?
		WHERE media_type = ? AND api_id = ?
	`, time.Now().UTC(), r.mediaType, apiID)
	if err != nil {
		return fmt.Errorf("failed to mark item missing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("media item not found: %s", apiID)
	}

	return nil
}

// GetByAPIID retrieves one item by its provider id. Returns sql.ErrNoRows
// when the catalog does not track it.
func (r *MediaRepository) GetByAPIID(ctx context.Context, apiID string) (*models.MediaItem, error) {
	query := `
		SELECT id, sequence, media_type, api_id, title, description, release_year, rating, missing, last_synced_at, created_at, updated_at
		FROM media_items
		WHERE media_type = ? AND api_id = ?
	`

	var (
		item         models.MediaItem
		description  sql.NullString
		releaseYear  sql.NullInt64
		rating       sql.NullFloat64
		lastSyncedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, r.mediaType, apiID).Scan(
		&item.ID, &item.Sequence, &item.MediaType, &item.APIID, &item.Title,
		&description, &releaseYear, &rating, &item.Missing, &lastSyncedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan media item: %w", err)
	}

	item.Description = description.String
	item.ReleaseYear = int(releaseYear.Int64)
	item.Rating = rating.Float64
	if lastSyncedAt.Valid {
		item.LastSyncedAt = &lastSyncedAt.Time
	}

	return &item, nil
}

// CountByStatus returns how many items the category tracks, split into
// active and missing.
func (r *MediaRepository) CountByStatus(ctx context.Context) (active, missing int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN missing = 0 THEN 1 END),
			COUNT(CASE WHEN missing = 1 THEN 1 END)
		FROM media_items
		WHERE media_type = ?
	`, r.mediaType).Scan(&active, &missing)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count media items: %w", err)
	}
	return active, missing, nil
}
