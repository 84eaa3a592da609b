package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/ratelimit"
	"github.com/arcspire/mediasync/internal/shared"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDBWindows are TMDB's published ceilings: a burst ceiling per second and
// the legacy 40-requests-per-10-seconds sustained ceiling.
var TMDBWindows = []ratelimit.Window{
	{Points: 4, Duration: time.Second, KeyPrefix: "burst"},
	{Points: 40, Duration: 10 * time.Second, KeyPrefix: "sustained"},
}

// TMDBService serves movie or TV show metadata from TMDB. One instance covers
// exactly one category; both share the same limiter key because TMDB rate
// limits per credential, not per endpoint.
type TMDBService struct {
	client    *Client
	apiKey    string
	category  models.MediaType
	transform Transformer
}

// NewTMDBService creates a TMDB source for the given category (movies or shows).
func NewTMDBService(apiKey string, category models.MediaType, limiter *ratelimit.Limiter, httpClient *http.Client) (*TMDBService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: TMDB api key", shared.ErrMissingCredentials)
	}
	if category != models.Movies && category != models.Shows {
		return nil, fmt.Errorf("TMDB does not serve %q", category)
	}

	return &TMDBService{
		client: NewClient(ClientOpts{
			Name:       "tmdb",
			BaseURL:    tmdbBaseURL,
			Limiter:    limiter,
			HTTPClient: httpClient,
		}),
		apiKey:    apiKey,
		category:  category,
		transform: &TMDBTransformer{Category: category},
	}, nil
}

// Name implements [Source].
func (s *TMDBService) Name() string { return s.client.Name() }

// Category implements [Source].
func (s *TMDBService) Category() models.MediaType { return s.category }

// Details implements [Source].
func (s *TMDBService) Details(ctx context.Context, apiID string) (*models.MediaDetails, error) {
	query := url.Values{}
	query.Set("api_key", s.apiKey)
	query.Set("append_to_response", "credits")

	raw, err := s.client.Get(ctx, fmt.Sprintf("/%s/%s", s.endpoint(), apiID), query)
	if err != nil {
		return nil, err
	}

	details, err := s.transform.Details(raw)
	if err != nil {
		return nil, err
	}
	details.APIID = apiID
	return details, nil
}

// ChangedIDs implements [ChangeFeed] using TMDB's changes endpoint, which
// reports item ids modified since the given date.
func (s *TMDBService) ChangedIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := url.Values{}
	query.Set("api_key", s.apiKey)
	query.Set("start_date", since.Format("2006-01-02"))

	raw, err := s.client.Get(ctx, fmt.Sprintf("/%s/changes", s.endpoint()), query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse TMDB changes: %w", err)
	}

	ids := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		ids = append(ids, fmt.Sprintf("%d", r.ID))
	}
	return ids, nil
}

func (s *TMDBService) endpoint() string {
	if s.category == models.Shows {
		return "tv"
	}
	return "movie"
}

// TMDBTransformer normalizes raw TMDB payloads. Movies and shows differ only
// in field names (title/name, release_date/first_air_date).
type TMDBTransformer struct {
	Category models.MediaType
}

type tmdbPayload struct {
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}

// Details implements [Transformer].
func (t *TMDBTransformer) Details(raw []byte) (*models.MediaDetails, error) {
	var payload tmdbPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse TMDB response: %w", err)
	}

	title := payload.Title
	date := payload.ReleaseDate
	if t.Category == models.Shows {
		title = payload.Name
		date = payload.FirstAirDate
	}

	details := &models.MediaDetails{
		MediaType:   t.Category,
		Title:       title,
		Description: payload.Overview,
		Rating:      payload.VoteAverage,
	}

	if len(date) >= 4 {
		var year int
		fmt.Sscanf(date[:4], "%d", &year)
		details.ReleaseYear = year
	}

	for _, g := range payload.Genres {
		details.Genres = append(details.Genres, g.Name)
	}

	for _, crew := range payload.Credits.Crew {
		if crew.Job == "Director" {
			details.Credits = append(details.Credits, models.Credit{Name: crew.Name, Role: "director"})
		}
	}
	for i, cast := range payload.Credits.Cast {
		if i >= 5 {
			break
		}
		details.Credits = append(details.Credits, models.Credit{Name: cast.Name, Role: "cast"})
	}

	return details, nil
}
