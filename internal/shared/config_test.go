package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Parses TOML File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[credentials.tmdb]
api_key = "tmdb-key"

[credentials.openlibrary]
contact_email = "ops@example.com"

[database]
path = "./catalog.db"
max_open_conns = 5

[queue]
redis_url = "redis://localhost:6379/1"
namespace = "test"

[[schedule]]
cron = "@daily"
task = "bulk-media-refresh"
params = { limit = 500 }
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("load config: %v", err)
		}

		if config.Credentials.TMDB.APIKey != "tmdb-key" {
			t.Errorf("unexpected tmdb key: %q", config.Credentials.TMDB.APIKey)
		}
		if config.Database.Path != "./catalog.db" {
			t.Errorf("unexpected database path: %q", config.Database.Path)
		}
		if config.Queue.Namespace != "test" {
			t.Errorf("unexpected namespace: %q", config.Queue.Namespace)
		}
		if len(config.Schedule) != 1 || config.Schedule[0].Task != "bulk-media-refresh" {
			t.Fatalf("unexpected schedule: %+v", config.Schedule)
		}
		if config.Schedule[0].Params["limit"] != int64(500) {
			t.Errorf("unexpected schedule params: %v", config.Schedule[0].Params)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Malformed TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("not [valid"), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		_, err := LoadConfig(path)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Environment Overrides Secrets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[credentials.tmdb]
api_key = "from-file"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		t.Setenv("TMDB_API_KEY", "from-env")
		t.Setenv("REDIS_URL", "redis://override:6379/0")

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if config.Credentials.TMDB.APIKey != "from-env" {
			t.Errorf("expected env override, got %q", config.Credentials.TMDB.APIKey)
		}
		if config.Queue.RedisURL != "redis://override:6379/0" {
			t.Errorf("expected env redis url, got %q", config.Queue.RedisURL)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Database.Path == "" {
		t.Error("expected embedded default database path")
	}
	if config.Queue.RedisURL == "" {
		t.Error("expected embedded default redis url")
	}
	if len(config.Schedule) == 0 {
		t.Error("expected embedded default schedules")
	}
}

func TestCreateConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := CreateConfigFile(path); err != nil {
		t.Fatalf("create config: %v", err)
	}
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("created config does not load: %v", err)
	}

	if err := CreateConfigFile(path); err == nil {
		t.Error("expected error when config already exists")
	}
}
