package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arcspire/mediasync/internal/ratelimit"
	"github.com/arcspire/mediasync/internal/shared"
	mediatest "github.com/arcspire/mediasync/internal/testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, limiter *ratelimit.Limiter) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientOpts{
		Name:       "test",
		BaseURL:    server.URL,
		Limiter:    limiter,
		HTTPClient: server.Client(),
	})
	return client, server
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Status Classification", func(t *testing.T) {
		cases := []struct {
			name   string
			status int
			want   error
		}{
			{"Not Found", http.StatusNotFound, shared.ErrNotFound},
			{"Gone", http.StatusGone, shared.ErrGone},
			{"Upstream Rate Limited", http.StatusTooManyRequests, shared.ErrUpstreamRateLimited},
			{"Server Error", http.StatusInternalServerError, shared.ErrUpstreamDown},
			{"Bad Gateway", http.StatusBadGateway, shared.ErrUpstreamDown},
			{"Unexpected Status", http.StatusTeapot, shared.ErrUnexpectedStatus},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
				}, nil)

				_, err := client.Get(ctx, "/item", nil)
				if !errors.Is(err, tc.want) {
					t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
				}
			})
		}
	})

	t.Run("Success Returns Body", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":true}`))
		}, nil)

		body, err := client.Get(ctx, "/item", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(body) != `{"ok":true}` {
			t.Errorf("unexpected body: %s", body)
		}
	})

	t.Run("Retry After Header", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		}, nil)

		_, err := client.Get(ctx, "/item", nil)

		var rlErr *shared.UpstreamRateLimitError
		if !errors.As(err, &rlErr) {
			t.Fatalf("expected *shared.UpstreamRateLimitError, got %v", err)
		}
		if rlErr.RetryAfter != 7*time.Second {
			t.Errorf("expected 7s retry after, got %s", rlErr.RetryAfter)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		t.Cleanup(server.Close)

		client := NewClient(ClientOpts{
			Name:       "test",
			BaseURL:    server.URL,
			HTTPClient: server.Client(),
			Timeout:    20 * time.Millisecond,
		})

		_, err := client.Get(ctx, "/slow", nil)
		if !errors.Is(err, shared.ErrUpstreamTimeout) {
			t.Errorf("expected ErrUpstreamTimeout, got %v", err)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		client := NewClient(ClientOpts{
			Name:    "test",
			BaseURL: "http://example.invalid",
			HTTPClient: &http.Client{
				Transport: mediatest.NewMockRoundTripper(nil, errors.New("connection refused")),
			},
		})

		_, err := client.Get(ctx, "/item", nil)
		if err == nil {
			t.Fatal("expected a transport error")
		}
		if errors.Is(err, shared.ErrUpstreamTimeout) {
			t.Errorf("plain transport failure must not classify as timeout: %v", err)
		}
	})

	t.Run("Consumes Limiter Before Calling", func(t *testing.T) {
		calls := 0
		limiter := ratelimit.New(nil, ratelimit.Window{Points: 2, Duration: time.Minute, KeyPrefix: "rl"})
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`{}`))
		}, limiter)

		for i := 0; i < 2; i++ {
			if _, err := client.Get(ctx, "/item", nil); err != nil {
				t.Fatalf("call %d: %v", i+1, err)
			}
		}

		_, err := client.Get(ctx, "/item", nil)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if calls != 2 {
			t.Errorf("rejected call must not reach the server, got %d calls", calls)
		}
	})
}
