package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/amishk599/jobsieve/internal/model"
)

// contentGenerator is the slice of *genai.Models the backend uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend calls the Gemini API through the Google GenAI SDK.
type GeminiBackend struct {
	name   string
	model  string
	models contentGenerator
}

// NewGeminiBackend creates a Gemini API client for model.
func NewGeminiBackend(ctx context.Context, name, apiKey, model string) (*GeminiBackend, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{name: name, model: model, models: client.Models}, nil
}

func (b *GeminiBackend) Name() string { return b.name }

// Complete sends prompt in JSON mode and joins the text parts of the response.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := b.models.GenerateContent(ctx, b.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", b.classify(err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(strings.TrimSpace(part.Text))
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", &BackendError{Backend: b.name, Kind: Transient, Err: errors.New("gemini api returned empty response")}
	}
	return output, nil
}

// classify turns a GenAI SDK error into a BackendError, carrying the API
// status as a *model.HTTPError so the retry delay is visible to the chain.
func (b *GeminiBackend) classify(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return &BackendError{Backend: b.name, Kind: classifyTransport(err), Err: fmt.Errorf("generate content: %w", err)}
	}
	return &BackendError{
		Backend: b.name,
		Kind:    classifyStatus(apiErr.Code),
		Err: &model.HTTPError{
			StatusCode: apiErr.Code,
			RetryAfter: retryDelay(apiErr),
			Err:        fmt.Errorf("%s: %s", apiErr.Status, apiErr.Message),
		},
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

// retryDelay reads the google.rpc.RetryInfo detail Gemini attaches to quota errors.
func retryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		if t, _ := detail["@type"].(string); !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 0
}
