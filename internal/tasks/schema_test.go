package tasks

import (
	"errors"
	"testing"

	"github.com/arcspire/mediasync/internal/shared"
)

func TestSchemaValidate(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "mediaType", Type: FieldString, Required: true, Enum: []string{"movies", "books"}},
		{Name: "limit", Type: FieldInt, Default: 50},
		{Name: "dryRun", Type: FieldBool},
		{Name: "tags", Type: FieldStrings},
	}}

	t.Run("Valid Input With Defaults", func(t *testing.T) {
		input, err := schema.Validate(map[string]any{"mediaType": "movies"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if input.String("mediaType") != "movies" {
			t.Errorf("unexpected mediaType: %s", input.String("mediaType"))
		}
		if input.Int("limit") != 50 {
			t.Errorf("expected default limit 50, got %d", input.Int("limit"))
		}
		if input.Bool("dryRun") {
			t.Error("expected dryRun to default to false")
		}
	})

	t.Run("Missing Required Field", func(t *testing.T) {
		_, err := schema.Validate(map[string]any{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}

		var vErr *shared.ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "mediaType" {
			t.Errorf("expected validation error on mediaType, got %v", err)
		}
	})

	t.Run("Enum Violation", func(t *testing.T) {
		_, err := schema.Validate(map[string]any{"mediaType": "podcasts"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Unknown Field Rejected", func(t *testing.T) {
		_, err := schema.Validate(map[string]any{"mediaType": "movies", "bogus": 1})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Wrong Type Rejected", func(t *testing.T) {
		_, err := schema.Validate(map[string]any{"mediaType": "movies", "limit": "ten"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("JSON Numbers Coerce To Int", func(t *testing.T) {
		input, err := schema.Validate(map[string]any{"mediaType": "movies", "limit": float64(25)})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if input.Int("limit") != 25 {
			t.Errorf("expected 25, got %d", input.Int("limit"))
		}
	})

	t.Run("Fractional Number Rejected", func(t *testing.T) {
		_, err := schema.Validate(map[string]any{"mediaType": "movies", "limit": 2.5})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("String List From JSON Decoding", func(t *testing.T) {
		input, err := schema.Validate(map[string]any{
			"mediaType": "books",
			"tags":      []any{"fantasy", "classic"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tags := input.Strings("tags")
		if len(tags) != 2 || tags[0] != "fantasy" {
			t.Errorf("unexpected tags: %v", tags)
		}
	})
}
