package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/ratelimit"
	"github.com/arcspire/mediasync/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	igdbBaseURL  = "https://api.igdb.com/v4"
	igdbTokenURL = "https://id.twitch.tv/oauth2/token"
)

// IGDBWindows match IGDB's documented 4 requests per second, with a sustained
// ceiling to stay polite during long sweeps.
var IGDBWindows = []ratelimit.Window{
	{Points: 4, Duration: time.Second, KeyPrefix: "burst"},
	{Points: 200, Duration: time.Minute, KeyPrefix: "sustained"},
}

// IGDBService serves game metadata from IGDB. Authentication uses the Twitch
// client-credentials flow; the oauth2 transport refreshes the app token
// transparently, so the service never handles tokens itself.
type IGDBService struct {
	client    *Client
	transform Transformer
}

// NewIGDBService creates an IGDB source from Twitch credentials.
func NewIGDBService(clientID, clientSecret string, limiter *ratelimit.Limiter) (*IGDBService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: IGDB client id and secret", shared.ErrMissingCredentials)
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     igdbTokenURL,
	}

	return &IGDBService{
		client: NewClient(ClientOpts{
			Name:       "igdb",
			BaseURL:    igdbBaseURL,
			Limiter:    limiter,
			HTTPClient: conf.Client(context.Background()),
			Headers:    map[string]string{"Client-ID": clientID},
		}),
		transform: &IGDBTransformer{},
	}, nil
}

// Name implements [Source].
func (s *IGDBService) Name() string { return s.client.Name() }

// Category implements [Source].
func (s *IGDBService) Category() models.MediaType { return models.Games }

// Details implements [Source]. IGDB queries use the Apicalypse body format on
// POST rather than URL parameters.
func (s *IGDBService) Details(ctx context.Context, apiID string) (*models.MediaDetails, error) {
	body := fmt.Sprintf(
		"fields name,summary,first_release_date,rating,genres.name,involved_companies.company.name,involved_companies.developer; where id = %s;",
		apiID,
	)

	raw, err := s.client.Post(ctx, "/games", []byte(body), "text/plain")
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

// IGDBTransformer normalizes raw IGDB payloads. Responses are arrays even for
// single-id queries; an empty array means the id does not exist upstream.
type IGDBTransformer struct{}

type igdbGame struct {
	Name              string  `json:"name"`
	Summary           string  `json:"summary"`
	FirstReleaseDate  int64   `json:"first_release_date"`
	Rating            float64 `json:"rating"`
	Genres            []struct {
		Name string `json:"name"`
	} `json:"genres"`
	InvolvedCompanies []struct {
		Developer bool `json:"developer"`
		Company   struct {
			Name string `json:"name"`
		} `json:"company"`
	} `json:"involved_companies"`
}

// Details implements [Transformer].
func (t *IGDBTransformer) Details(raw []byte) (*models.MediaDetails, error) {
	var games []igdbGame
	if err := json.Unmarshal(raw, &games); err != nil {
		return nil, fmt.Errorf("failed to parse IGDB response: %w", err)
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("%w: IGDB returned no match", shared.ErrNotFound)
	}

	game := games[0]
	details := &models.MediaDetails{
		MediaType:   models.Games,
		Title:       game.Name,
		Description: game.Summary,
		// IGDB rates on a 0-100 scale; the catalog stores 0-10.
		Rating: game.Rating / 10,
	}

	if game.FirstReleaseDate > 0 {
		details.ReleaseYear = time.Unix(game.FirstReleaseDate, 0).UTC().Year()
	}

	for _, g := range game.Genres {
		details.Genres = append(details.Genres, g.Name)
	}
	for _, ic := range game.InvolvedCompanies {
		if ic.Developer && ic.Company.Name != "" {
			details.Credits = append(details.Credits, models.Credit{Name: ic.Company.Name, Role: "developer"})
		}
	}

	return details, nil
}
