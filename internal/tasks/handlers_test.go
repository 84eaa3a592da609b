package tasks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/shared"
	syncsvc "github.com/arcspire/mediasync/internal/sync"
)

// scriptedSource implements providers.Source, failing or pruning specific ids.
type scriptedSource struct {
	category models.MediaType
	failOn   map[string]error
	calls    atomic.Int64
}

func (s *scriptedSource) Name() string { return "scripted" }
func (s *scriptedSource) Category() models.MediaType { return s.category }

func (s *scriptedSource) Details(_ context.Context, apiID string) (*models.MediaDetails, error) {
	s.calls.Add(1)
	if err, ok := s.failOn[apiID]; ok {
		return nil, err
	}
	return &models.MediaDetails{APIID: apiID, MediaType: s.category, Title: "Item " + apiID}, nil
}

// scriptedRepo implements sync.Repository in memory.
type scriptedRepo struct {
	due     []string
	missing []string
}

func (r *scriptedRepo) IDsDueForRefresh(_ context.Context, limit int) ([]string, error) {
	if limit > 0 && limit < len(r.due) {
		return r.due[:limit], nil
	}
	return r.due, nil
}

func (r *scriptedRepo) UpsertDetails(_ context.Context, details *models.MediaDetails) (*models.MediaItem, error) {
	return &models.MediaItem{ID: "row-" + details.APIID, APIID: details.APIID, MediaType: details.MediaType, Title: details.Title}, nil
}

func (r *scriptedRepo) MarkMissing(_ context.Context, apiID string) error {
	r.missing = append(r.missing, apiID)
	return nil
}

type fakePruner struct{ deleted int }

func (p *fakePruner) PruneArchivedJobs(_ context.Context, keepCompleted, keepFailed int) (int, error) {
	return p.deleted, nil
}

type fakeStats struct{ users []string }

func (s *fakeStats) Recalculate(_ context.Context, userID string) error {
	s.users = append(s.users, userID)
	return nil
}

func candidateIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", i+1)
	}
	return out
}

func setupEngine(t *testing.T, source *scriptedSource, repo *scriptedRepo) (*Runner, *memoryHistory) {
	t.Helper()

	svc := syncsvc.NewService(syncsvc.ServiceOpts{Source: source, Repo: repo})
	deps := HandlerDeps{
		Services:   map[models.MediaType]*syncsvc.Service{source.category: svc},
		History:    &fakePruner{},
		Statistics: &fakeStats{},
	}

	reg := NewRegistry()
	if err := RegisterAll(reg, deps); err != nil {
		t.Fatalf("register all: %v", err)
	}

	history := &memoryHistory{}
	return NewRunner(reg, history, nil), history
}

func TestBulkMediaRefreshTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Scenario: One Failure Among Five", func(t *testing.T) {
		// Enqueue-equivalent run of bulk-media-refresh with movies/limit 5
		// against a provider failing on the 2nd item: the run still completes
		// with 4 successes and 1 error.
		source := &scriptedSource{
			category: models.Movies,
			failOn:   map[string]error{"2": fmt.Errorf("%w: status 503", shared.ErrUpstreamDown)},
		}
		repo := &scriptedRepo{due: candidateIDs(5)}
		runner, history := setupEngine(t, source, repo)

		record, err := runner.Run(ctx, RunRequest{
			Name:        TaskBulkMediaRefresh,
			Input:       map[string]any{"mediaTypes": []string{"movies"}, "limit": 5},
			TriggeredBy: models.TriggerDashboard,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}

		if record.Status != models.JobCompleted {
			t.Errorf("expected completed, got %s", record.Status)
		}
		if record.Metrics["movies.success"] != "4" {
			t.Errorf("expected movies.success=4, got %s", record.Metrics["movies.success"])
		}
		if record.Metrics["movies.errors"] != "1" {
			t.Errorf("expected movies.errors=1, got %s", record.Metrics["movies.errors"])
		}
		if len(history.records) != 1 {
			t.Errorf("expected one persisted record, got %d", len(history.records))
		}
	})

	t.Run("Missing Items Are Marked And Counted Separately", func(t *testing.T) {
		source := &scriptedSource{
			category: models.Books,
			failOn:   map[string]error{"3": fmt.Errorf("%w: pruned", shared.ErrNotFound)},
		}
		repo := &scriptedRepo{due: candidateIDs(4)}
		runner, _ := setupEngine(t, source, repo)

		record, err := runner.Run(ctx, RunRequest{
			Name:        TaskBulkMediaRefresh,
			Input:       map[string]any{"mediaTypes": []string{"books"}},
			TriggeredBy: models.TriggerCron,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}

		if record.Metrics["books.success"] != "3" {
			t.Errorf("expected books.success=3, got %s", record.Metrics["books.success"])
		}
		if record.Metrics["books.removed"] != "1" {
			t.Errorf("expected books.removed=1, got %s", record.Metrics["books.removed"])
		}
		if record.Metrics["books.errors"] != "" {
			t.Errorf("expected no error metric, got %s", record.Metrics["books.errors"])
		}
		if len(repo.missing) != 1 || repo.missing[0] != "3" {
			t.Errorf("expected item 3 marked missing, got %v", repo.missing)
		}
	})

	t.Run("Cancellation Stops Between Items", func(t *testing.T) {
		source := &scriptedSource{category: models.Movies}
		repo := &scriptedRepo{due: candidateIDs(10)}

		svc := syncsvc.NewService(syncsvc.ServiceOpts{Source: source, Repo: repo})
		deps := HandlerDeps{
			Services:   map[models.MediaType]*syncsvc.Service{models.Movies: svc},
			History:    &fakePruner{},
			Statistics: &fakeStats{},
		}
		reg := NewRegistry()
		if err := RegisterAll(reg, deps); err != nil {
			t.Fatalf("register all: %v", err)
		}
		history := &memoryHistory{}
		runner := NewRunner(reg, history, nil)

		// The flag flips after the 3rd provider call; the sweep must stop
		// before item 4 begins.
		record, err := runner.Run(context.Background(), RunRequest{
			Name:        TaskBulkMediaRefresh,
			Input:       map[string]any{"mediaTypes": []string{"movies"}},
			TriggeredBy: models.TriggerUser,
			Cancelled:   func() bool { return source.calls.Load() >= 3 },
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}

		if record.Status != models.JobCancelled {
			t.Errorf("expected cancelled, got %s", record.Status)
		}
		if got := source.calls.Load(); got != 3 {
			t.Errorf("expected exactly 3 provider calls, got %d", got)
		}
		if record.Metrics["movies.success"] != "3" {
			t.Errorf("expected outcomes 1-3 in metrics, got %s", record.Metrics["movies.success"])
		}
	})

	t.Run("Unconfigured Category Is Skipped", func(t *testing.T) {
		source := &scriptedSource{category: models.Movies}
		repo := &scriptedRepo{due: candidateIDs(1)}
		runner, _ := setupEngine(t, source, repo)

		record, err := runner.Run(ctx, RunRequest{
			Name:        TaskBulkMediaRefresh,
			Input:       map[string]any{"mediaTypes": []string{"movies", "games"}},
			TriggeredBy: models.TriggerCLI,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if record.Status != models.JobCompleted {
			t.Errorf("expected completed despite missing games provider, got %s", record.Status)
		}
	})
}

func TestRefreshMediaItemTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Refreshes One Item", func(t *testing.T) {
		source := &scriptedSource{category: models.Movies}
		runner, _ := setupEngine(t, source, &scriptedRepo{})

		record, err := runner.Run(ctx, RunRequest{
			Name:        TaskRefreshMediaItem,
			Input:       map[string]any{"mediaType": "movies", "apiId": "603"},
			TriggeredBy: models.TriggerUser,
			UserID:      "u-1",
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if record.Metrics["refreshed"] != "1" {
			t.Errorf("expected refreshed=1, got %v", record.Metrics)
		}
		if record.UserID != "u-1" {
			t.Errorf("expected user attribution, got %q", record.UserID)
		}
	})

	t.Run("Missing Upstream Marks And Completes", func(t *testing.T) {
		source := &scriptedSource{
			category: models.Movies,
			failOn:   map[string]error{"603": fmt.Errorf("%w: gone", shared.ErrGone)},
		}
		repo := &scriptedRepo{}
		runner, _ := setupEngine(t, source, repo)

		record, err := runner.Run(ctx, RunRequest{
			Name:        TaskRefreshMediaItem,
			Input:       map[string]any{"mediaType": "movies", "apiId": "603"},
			TriggeredBy: models.TriggerUser,
		})
		if err != nil {
			t.Fatalf("expected completion on upstream absence, got %v", err)
		}
		if record.Status != models.JobCompleted {
			t.Errorf("expected completed, got %s", record.Status)
		}
		if len(repo.missing) != 1 {
			t.Errorf("expected item marked missing, got %v", repo.missing)
		}
	})
}

func TestRecalculateStatisticsTask(t *testing.T) {
	source := &scriptedSource{category: models.Movies}
	svc := syncsvc.NewService(syncsvc.ServiceOpts{Source: source, Repo: &scriptedRepo{}})
	stats := &fakeStats{}
	deps := HandlerDeps{
		Services:   map[models.MediaType]*syncsvc.Service{models.Movies: svc},
		History:    &fakePruner{},
		Statistics: stats,
	}
	reg := NewRegistry()
	if err := RegisterAll(reg, deps); err != nil {
		t.Fatalf("register all: %v", err)
	}
	runner := NewRunner(reg, &memoryHistory{}, nil)

	_, err := runner.Run(context.Background(), RunRequest{
		Name:        TaskRecalculateStatistics,
		Input:       map[string]any{"userId": "u-9"},
		TriggeredBy: models.TriggerUser,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stats.users) != 1 || stats.users[0] != "u-9" {
		t.Errorf("expected one recalculation for u-9, got %v", stats.users)
	}
}

func TestCleanupJobHistoryTask(t *testing.T) {
	source := &scriptedSource{category: models.Movies}
	svc := syncsvc.NewService(syncsvc.ServiceOpts{Source: source, Repo: &scriptedRepo{}})
	pruner := &fakePruner{deleted: 12}
	deps := HandlerDeps{
		Services:   map[models.MediaType]*syncsvc.Service{models.Movies: svc},
		History:    pruner,
		Statistics: &fakeStats{},
	}
	reg := NewRegistry()
	if err := RegisterAll(reg, deps); err != nil {
		t.Fatalf("register all: %v", err)
	}
	runner := NewRunner(reg, &memoryHistory{}, nil)

	record, err := runner.Run(context.Background(), RunRequest{
		Name:        TaskCleanupJobHistory,
		TriggeredBy: models.TriggerCron,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if record.Metrics["deleted"] != "12" {
		t.Errorf("expected deleted=12, got %v", record.Metrics)
	}
}
