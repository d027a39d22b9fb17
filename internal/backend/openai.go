package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
)

const maxErrorBody = 512

// OpenAIBackend calls an OpenAI-compatible /chat/completions endpoint
// (OpenAI, OpenRouter, DeepSeek and friends) in JSON mode.
type OpenAIBackend struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	now        func() time.Time
}

// NewOpenAIBackend creates a backend for model at baseURL.
func NewOpenAIBackend(name, baseURL, apiKey, model string, httpClient *http.Client) *OpenAIBackend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIBackend{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// chatRequest mirrors the /chat/completions request body.
type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// chatResponse mirrors the relevant fields of the response.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (b *OpenAIBackend) Name() string { return b.name }

// Complete sends prompt and returns the first choice's content.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a precise job-fit evaluator. Reply with a single JSON object."},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		MaxTokens:      2048,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", b.fail(Transient, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", b.fail(Unavailable, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("X-Title", "jobsieve")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", b.fail(classifyTransport(err), fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", b.fail(Transient, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(respBytes)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", b.fail(classifyStatus(resp.StatusCode), &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), b.now()),
			Err:        errors.New(snippet),
		})
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", b.fail(Transient, fmt.Errorf("parse response: %w", err))
	}
	if chatResp.Error != nil {
		return "", b.fail(Transient, fmt.Errorf("model error (%s): %s", chatResp.Error.Type, chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", b.fail(Transient, errors.New("no choices returned"))
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", b.fail(Transient, errors.New("empty content"))
	}
	return content, nil
}

func (b *OpenAIBackend) fail(kind Kind, err error) error {
	return &BackendError{Backend: b.name, Kind: kind, Err: err}
}
