package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/providers"
	"github.com/arcspire/mediasync/internal/ratelimit"
	"github.com/arcspire/mediasync/internal/repositories"
	"github.com/arcspire/mediasync/internal/shared"
	syncsvc "github.com/arcspire/mediasync/internal/sync"
	"github.com/arcspire/mediasync/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, tasksCommand, jobsCommand, mediaCommand, workerCommand, scheduleCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// openDatabase opens the configured catalog database. Callers own the handle.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// redisClient connects to the configured queue broker.
func (r *Runner) redisClient() (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(r.config.Queue.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrQueueUnavailable, err)
	}
	return redis.NewClient(redisOpts), nil
}

// buildSources constructs one provider per category the credentials allow.
// Limiters ride the given store, so a redis store shares budgets across
// processes while the nil default keeps them process local.
func (r *Runner) buildSources(store ratelimit.Store) (map[models.MediaType]providers.Source, error) {
	sources := make(map[models.MediaType]providers.Source)
	creds := r.config.Credentials

	if creds.TMDB.APIKey != "" {
		limiter := ratelimit.New(store, providers.TMDBWindows...)
		for _, category := range []models.MediaType{models.Movies, models.Shows} {
			svc, err := providers.NewTMDBService(creds.TMDB.APIKey, category, limiter, r.httpClient)
			if err != nil {
				return nil, fmt.Errorf("failed to build tmdb service: %w", err)
			}
			sources[category] = svc
		}
	}

	if creds.OpenLibrary.ContactEmail != "" {
		limiter := ratelimit.New(store, providers.OpenLibraryWindows...)
		sources[models.Books] = providers.NewOpenLibraryService(creds.OpenLibrary.ContactEmail, limiter, r.httpClient)
	}

	if creds.IGDB.ClientID != "" && creds.IGDB.ClientSecret != "" {
		limiter := ratelimit.New(store, providers.IGDBWindows...)
		svc, err := providers.NewIGDBService(creds.IGDB.ClientID, creds.IGDB.ClientSecret, limiter)
		if err != nil {
			return nil, fmt.Errorf("failed to build igdb service: %w", err)
		}
		sources[models.Games] = svc
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no provider credentials configured", shared.ErrMissingCredentials)
	}
	return sources, nil
}

// engine bundles everything a task run needs over one open database.
type engine struct {
	registry *tasks.Registry
	runner   *tasks.Runner
	history  *repositories.JobHistoryRepository
}

// buildEngine wires sources, repositories and the task registry over db.
func (r *Runner) buildEngine(db *sql.DB, store ratelimit.Store) (*engine, error) {
	sources, err := r.buildSources(store)
	if err != nil {
		return nil, err
	}

	services := make(map[models.MediaType]*syncsvc.Service, len(sources))
	for category, source := range sources {
		services[category] = syncsvc.NewService(syncsvc.ServiceOpts{
			Source: source,
			Repo:   repositories.NewMediaRepository(db, category),
			Logger: r.logger,
		})
	}

	history := repositories.NewJobHistoryRepository(db)

	registry := tasks.NewRegistry()
	err = tasks.RegisterAll(registry, tasks.HandlerDeps{
		Services:   services,
		History:    history,
		Statistics: repositories.NewStatisticsRepository(db),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register tasks: %w", err)
	}

	return &engine{
		registry: registry,
		runner:   tasks.NewRunner(registry, history, r.logger),
		history:  history,
	}, nil
}

// staticRegistry builds the registry with no live collaborators, for surfaces
// that only need task names and schemas (flag generation, worker validation).
func staticRegistry() *tasks.Registry {
	registry := tasks.NewRegistry()

	// Definitions registered with placeholder collaborators are never run
	// through this registry; resolution failures surface at wiring time.
	err := tasks.RegisterAll(registry, tasks.HandlerDeps{
		Services:   map[models.MediaType]*syncsvc.Service{},
		History:    noopPruner{},
		Statistics: noopStatistics{},
	})
	if err != nil {
		panic(fmt.Sprintf("static task registration failed: %v", err))
	}
	return registry
}

type noopPruner struct{}

func (noopPruner) PruneArchivedJobs(context.Context, int, int) (int, error) { return 0, nil }

type noopStatistics struct{}

func (noopStatistics) Recalculate(context.Context, string) error { return nil }
