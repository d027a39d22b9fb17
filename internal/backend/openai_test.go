package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
)

func makeTestServer(t *testing.T, statusCode int, header http.Header, body any) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if s, ok := body.(string); ok {
			w.Write([]byte(s))
			return
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

func okResponse(content string) chatResponse {
	var c chatChoice
	c.Message.Content = content
	return chatResponse{Choices: []chatChoice{c}}
}

func TestComplete_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(okResponse(`{"hard_gate_failed": null}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("primary", srv.URL+"/", "test-key", "test-model", srv.Client())
	out, err := b.Complete(context.Background(), "score this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"hard_gate_failed": null}` {
		t.Errorf("got %q", out)
	}
	if got.Model != "test-model" || got.ResponseFormat.Type != "json_object" || got.Messages[1].Content != "score this" {
		t.Errorf("request = %+v", got)
	}
}

func TestComplete_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   any
		want   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, http.Header{"Retry-After": {"3"}}, map[string]string{"error": "slow down"}, RateLimited},
		{"server error", http.StatusInternalServerError, nil, map[string]string{"error": "boom"}, Unavailable},
		{"bad gateway", http.StatusBadGateway, nil, "", Unavailable},
		{"model not found", http.StatusNotFound, nil, map[string]string{"error": "no such model"}, Unavailable},
		{"unauthorized", http.StatusUnauthorized, nil, map[string]string{"error": "bad key"}, Unavailable},
		{"bad request", http.StatusBadRequest, nil, map[string]string{"error": "prompt too long"}, Transient},
		{"malformed body", http.StatusOK, nil, "not json", Transient},
		{"empty choices", http.StatusOK, nil, chatResponse{}, Transient},
		{"empty content", http.StatusOK, nil, okResponse("   "), Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, client := makeTestServer(t, tt.status, tt.header, tt.body)
			b := NewOpenAIBackend("primary", srv.URL, "k", "m", client)

			_, err := b.Complete(context.Background(), "p")
			var be *BackendError
			if !errors.As(err, &be) {
				t.Fatalf("expected *BackendError, got %v", err)
			}
			if be.Kind != tt.want || be.Backend != "primary" {
				t.Errorf("BackendError = %s/%s, want %s", be.Backend, be.Kind, tt.want)
			}
		})
	}
}

func TestComplete_RetryAfterCarried(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusTooManyRequests, http.Header{"Retry-After": {"7"}}, "{}")
	b := NewOpenAIBackend("primary", srv.URL, "k", "m", client)

	_, err := b.Complete(context.Background(), "p")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError in chain, got %v", err)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", httpErr.RetryAfter)
	}
}

func TestComplete_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := NewOpenAIBackend("primary", url, "k", "m", nil)
	_, err := b.Complete(context.Background(), "p")
	if kind, ok := KindOf(err); !ok || kind != Unavailable {
		t.Fatalf("KindOf = %v, %v; want Unavailable (err: %v)", kind, ok, err)
	}
}

func TestComplete_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b := NewOpenAIBackend("primary", srv.URL, "k", "m", srv.Client())
	_, err := b.Complete(ctx, "p")
	if kind, _ := KindOf(err); kind != Transient {
		t.Fatalf("kind = %v, want Transient (err: %v)", kind, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded in chain, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"garbage", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
