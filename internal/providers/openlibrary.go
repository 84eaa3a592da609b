package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arcspire/mediasync/internal/models"
	"github.com/arcspire/mediasync/internal/ratelimit"
)

const openLibraryBaseURL = "https://openlibrary.org"

// OpenLibraryWindows keep well under Open Library's courtesy ceiling; the API
// is unauthenticated, so the budget protects our reputation, not a credential.
var OpenLibraryWindows = []ratelimit.Window{
	{Points: 3, Duration: time.Second, KeyPrefix: "burst"},
	{Points: 90, Duration: time.Minute, KeyPrefix: "sustained"},
}

// OpenLibraryService serves book metadata from Open Library works records.
type OpenLibraryService struct {
	client    *Client
	transform Transformer
}

// NewOpenLibraryService creates an Open Library source. contactEmail, when
// set, is embedded in the User-Agent as the API's usage guidelines ask.
func NewOpenLibraryService(contactEmail string, limiter *ratelimit.Limiter, httpClient *http.Client) *OpenLibraryService {
	agent := "mediasync/1.0"
	if contactEmail != "" {
		agent = fmt.Sprintf("mediasync/1.0 (%s)", contactEmail)
	}

	return &OpenLibraryService{
		client: NewClient(ClientOpts{
			Name:       "openlibrary",
			BaseURL:    openLibraryBaseURL,
			Limiter:    limiter,
			HTTPClient: httpClient,
			Headers:    map[string]string{"User-Agent": agent},
		}),
		transform: &OpenLibraryTransformer{},
	}
}

// Name implements [Source].
func (s *OpenLibraryService) Name() string { return s.client.Name() }

// Category implements [Source].
func (s *OpenLibraryService) Category() models.MediaType { return models.Books }

// Details implements [Source]. apiID is an Open Library work key such as "OL45883W".
func (s *OpenLibraryService) Details(ctx context.Context, apiID string) (*models.MediaDetails, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf("/works/%s.json", apiID), nil)
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

// OpenLibraryTransformer normalizes raw works records. The description field
// is polymorphic upstream: either a string or a {type, value} object.
type OpenLibraryTransformer struct{}

type openLibraryWork struct {
	Title            string          `json:"title"`
	Description      json.RawMessage `json:"description"`
	Subjects         []string        `json:"subjects"`
	FirstPublishDate string          `json:"first_publish_date"`
	Authors          []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

// Details implements [Transformer].
func (t *OpenLibraryTransformer) Details(raw []byte) (*models.MediaDetails, error) {
	var work openLibraryWork
	if err := json.Unmarshal(raw, &work); err != nil {
		return nil, fmt.Errorf("failed to parse Open Library response: %w", err)
	}

	details := &models.MediaDetails{
		MediaType:   models.Books,
		Title:       work.Title,
		Description: parseDescription(work.Description),
	}

	if len(work.FirstPublishDate) >= 4 {
		var year int
		// Dates come as "1937", "May 1937" or "May 12, 1937"; the year is
		// always the last token.
		fmt.Sscanf(work.FirstPublishDate[len(work.FirstPublishDate)-4:], "%d", &year)
		details.ReleaseYear = year
	}

	const maxSubjects = 10
	for i, subject := range work.Subjects {
		if i >= maxSubjects {
			break
		}
		details.Genres = append(details.Genres, subject)
	}

	for _, a := range work.Authors {
		if a.Author.Key != "" {
			details.Credits = append(details.Credits, models.Credit{Name: a.Author.Key, Role: "author"})
		}
	}

	return details, nil
}

func parseDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return typed.Value
	}
	return ""
}
