package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/amishk599/jobsieve/internal/model"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGemini_Success(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"a":`, ` 1}`)}
	b := &GeminiBackend{name: "gemini", model: "gemini-2.5-flash", models: gen}

	out, err := b.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "{\"a\":\n1}" {
		t.Errorf("out = %q", out)
	}
	if gen.config.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", gen.config.ResponseMIMEType)
	}
}

func TestGemini_EmptyResponseIsTransient(t *testing.T) {
	b := &GeminiBackend{name: "gemini", models: &fakeGenerator{resp: textResponse("  ")}}
	_, err := b.Complete(context.Background(), "p")
	if kind, _ := KindOf(err); kind != Transient {
		t.Fatalf("kind = %v, want Transient", kind)
	}
}

func TestGemini_Classification(t *testing.T) {
	quota := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted",
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"},
		},
	}
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"quota", quota, RateLimited},
		{"wrapped quota", fmt.Errorf("call: %w", quota), RateLimited},
		{"internal", genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}, Unavailable},
		{"permission", genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}, Unavailable},
		{"invalid argument", genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}, Transient},
		{"deadline", context.DeadlineExceeded, Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &GeminiBackend{name: "gemini", models: &fakeGenerator{err: tt.err}}
			_, err := b.Complete(context.Background(), "p")
			if kind, _ := KindOf(err); kind != tt.want {
				t.Fatalf("kind = %v, want %v (err: %v)", kind, tt.want, err)
			}
		})
	}
}

func TestGemini_RetryDelayFromDetails(t *testing.T) {
	quota := genai.APIError{
		Code: http.StatusTooManyRequests,
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"},
		},
	}
	b := &GeminiBackend{name: "gemini", models: &fakeGenerator{err: quota}}
	_, err := b.Complete(context.Background(), "p")

	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.RetryAfter != 12*time.Second {
		t.Fatalf("expected RetryAfter 12s, got %v", err)
	}
}
