package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// CloudOCRStrategy calls a remote OCR service with the document bytes and
// language hints. Non-2xx responses and timeouts are treated identically as
// "unavailable" so the cascade falls through.
type CloudOCRStrategy struct {
	endpoint string
	apiKey   string
	langs    string
	client   *http.Client
	logger   *slog.Logger
}

func NewCloudOCRStrategy(endpoint, apiKey, langs string, timeout time.Duration, logger *slog.Logger) *CloudOCRStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CloudOCRStrategy{
		endpoint: endpoint,
		apiKey:   apiKey,
		langs:    langs,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (s *CloudOCRStrategy) Name() string { return "cloud-ocr" }

// cloudOCRResponse is the provider contract: plain text plus confidence, with
// any detected barcodes (QR payloads) listed separately.
type cloudOCRResponse struct {
	Text       string   `json:"text"`
	Confidence float32  `json:"confidence"`
	Barcodes   []string `json:"barcodes"`
}

func (s *CloudOCRStrategy) Extract(ctx context.Context, src Source, page int) (PageResult, Outcome, error) {
	if s.endpoint == "" {
		return PageResult{}, Unavailable, fmt.Errorf("cloud OCR not configured")
	}

	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return PageResult{}, Unavailable, fmt.Errorf("read source: %w", err)
	}

	url := fmt.Sprintf("%s?page=%d&langs=%s", s.endpoint, page, s.langs)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return PageResult{}, Unavailable, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// timeout and transport errors fall through the cascade identically
		return PageResult{}, Unavailable, fmt.Errorf("cloud ocr: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Warn("cloud ocr body close", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return PageResult{}, Unavailable, fmt.Errorf("cloud ocr status %d: %s", resp.StatusCode, body)
	}

	var out cloudOCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PageResult{}, Unavailable, fmt.Errorf("decode cloud ocr response: %w", err)
	}
	if out.Text == "" && len(out.Barcodes) == 0 {
		return PageResult{}, Empty, nil
	}
	return PageResult{Text: out.Text, QRPayloads: out.Barcodes, Confidence: out.Confidence}, Success, nil
}
