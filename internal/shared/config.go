package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Queue       QueueConfig       `toml:"queue"`
	Schedule    []ScheduleConfig  `toml:"schedule"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	TMDB        TMDBConfig        `toml:"tmdb"`
	IGDB        IGDBConfig        `toml:"igdb"`
	OpenLibrary OpenLibraryConfig `toml:"openlibrary"`
}

// TMDBConfig contains TMDB API credentials (movies and TV shows).
type TMDBConfig struct {
	APIKey string `toml:"api_key"`
}

// IGDBConfig contains IGDB (Twitch) API credentials (games).
type IGDBConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// OpenLibraryConfig contains Open Library settings (books).
// The API requires no key; ContactEmail is sent as a courtesy User-Agent detail.
type OpenLibraryConfig struct {
	ContactEmail string `toml:"contact_email"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// QueueConfig contains job queue broker settings.
type QueueConfig struct {
	RedisURL  string `toml:"redis_url"`
	Namespace string `toml:"namespace"`
}

// ScheduleConfig declares a periodic enqueue of a registered task.
type ScheduleConfig struct {
	Cron   string         `toml:"cron"`
	Task   string         `toml:"task"`
	Params map[string]any `toml:"params"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Environment variables override file values for secrets and the broker URL
// (REDIS_URL, TMDB_API_KEY, IGDB_CLIENT_ID, IGDB_CLIENT_SECRET) so that
// credentials never have to live on disk. Nothing outside this function reads
// the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Queue.RedisURL = v
	}
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		c.Credentials.TMDB.APIKey = v
	}
	if v := os.Getenv("IGDB_CLIENT_ID"); v != "" {
		c.Credentials.IGDB.ClientID = v
	}
	if v := os.Getenv("IGDB_CLIENT_SECRET"); v != "" {
		c.Credentials.IGDB.ClientSecret = v
	}
}
