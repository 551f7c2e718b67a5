// Package moonshot adapts Moonshot's OpenAI-compatible chat completions API
// to the ADK model.LLM interface.
package moonshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"fleetdesk_backend/platform/retry"

	"google.golang.org/adk/model"
)

const (
	defaultBaseURL = "https://api.moonshot.ai/v1"
	defaultModel   = "kimi-k2-turbo-preview"
	defaultTimeout = 45 * time.Second
	maxBodyBytes   = 4 << 20
)

// Config configures the adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries bounds retries of rate-limited or 5xx responses.
	MaxRetries int
	Timeout    time.Duration
}

// Model implements model.LLM over the chat completions endpoint.
type Model struct {
	apiKey   string
	endpoint string
	name     string
	policy   retry.Config
	client   *http.Client
}

var _ model.LLM = (*Model)(nil)

// New creates a model adapter, filling unset fields with defaults.
func New(cfg Config) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Model{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		name:     cfg.Model,
		policy:   retry.Config{MaxRetries: cfg.MaxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second},
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *Model) Name() string { return m.name }

// GenerateContent sends one completion request. Streaming is not supported,
// so exactly one response or error is yielded.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		yield(m.complete(ctx, req))
	}
}

func (m *Model) complete(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("moonshot: nil request")
	}
	payload, err := json.Marshal(encodeRequest(m.name, req))
	if err != nil {
		return nil, fmt.Errorf("moonshot: encode request: %w", err)
	}

	body, err := retry.Do(ctx, m.policy, func(ctx context.Context) ([]byte, error) {
		return m.post(ctx, payload)
	})
	if err != nil {
		return nil, err
	}
	return decodeResponse(body)
}

// post returns the raw response body. Rate limiting, server errors and
// truncated reads are reported as transient.
func (m *Model) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, retry.Transient(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return nil, retry.Transient(fmt.Errorf("moonshot: status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("moonshot: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
