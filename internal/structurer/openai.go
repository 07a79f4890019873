package structurer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpenAIProvider talks to any OpenAI-compatible chat/completions endpoint.
// Two instances cover the primary and secondary credentials.
type OpenAIProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAIProvider(name, baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model":           p.model,
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	raw, status, err := p.post(ctx, strings.TrimRight(p.baseURL, "/")+"/chat/completions", body)
	if err != nil {
		if status == http.StatusTooManyRequests {
			p.logger.Warn("structurer.provider.rate_limited", "provider", p.name, "req_id", rid)
			return "", fmt.Errorf("%s: %w", p.name, ErrRateLimited)
		}
		p.logger.Error("structurer.provider.http_error",
			"provider", p.name, "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode %s response: %w", p.name, err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", p.name)
	}

	p.logger.Info("structurer.provider.ok",
		"provider", p.name, "req_id", rid,
		"elapsed_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) post(ctx context.Context, url string, body map[string]any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s http error: %w", p.name, err)
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			p.logger.Warn("structurer.provider.body_close_error", "provider", p.name, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("%s status %d: %s", p.name, resp.StatusCode, string(raw))
	}
	return raw, resp.StatusCode, nil
}
