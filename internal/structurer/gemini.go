package structurer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider is the last link of the chain: a general-purpose model used
// when both OpenAI-compatible credentials are out.
type GeminiProvider struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	logger  *slog.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string, timeout time.Duration, logger *slog.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	return &GeminiProvider{client: client, model: model, timeout: timeout, logger: logger}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *GeminiProvider) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	p.model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	resp, err := p.model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var fullText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			fullText += string(txt)
		}
	}
	p.logger.Info("structurer.provider.ok",
		"provider", "gemini",
		"elapsed_ms", time.Since(start).Milliseconds())
	return fullText, nil
}
