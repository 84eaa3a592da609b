package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arcspire/mediasync/internal/formatter"
	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/repositories"
	"github.com/urfave/cli/v3"
)

// MediaShow prints one tracked catalog item.
func (r *Runner) MediaShow(ctx context.Context, cmd *cli.Command) error {
	mediaType, err := models.ParseMediaType(cmd.StringArg("type"))
	if err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("media id required")
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	item, err := repositories.NewMediaRepository(db, mediaType).GetByAPIID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("media item not found: %s", id)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.ToJSON(item)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writePlain("%s", formatter.FormatMediaItem(item))
}
