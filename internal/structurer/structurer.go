package structurer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmaia/inbound-recon/internal/acquire"
	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/numfmt"
)

// Result is one structuring pass over a document.
type Result struct {
	Items       []extract.Item
	Supplier    string
	SupplierNIF string
	OrderNumber string
	Provider    string // provider that produced the accepted response
}

// Structurer runs the provider chain over acquired text.
type Structurer struct {
	primary   Provider
	secondary Provider // consulted only after a rate-limit signal
	fallback  Provider
	budget    int
	logger    *slog.Logger
}

func New(primary, secondary, fallback Provider, budget int, logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Structurer{
		primary:   primary,
		secondary: secondary,
		fallback:  fallback,
		budget:    budget,
		logger:    logger,
	}
}

type llmProduct struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	OrderRef    string `json:"order_ref"`
}

type llmResponse struct {
	Supplier    string       `json:"supplier"`
	SupplierNIF string       `json:"supplier_nif"`
	OrderNumber string       `json:"order_number"`
	Products    []llmProduct `json:"products"`
}

// Structure extracts product records from text. Multi-page text is submitted
// page by page and the fragments' items are concatenated and deduplicated.
// A nil error with zero items is a legitimate outcome; the caller decides
// what an empty structuring pass means.
func (s *Structurer) Structure(ctx context.Context, text string) (Result, error) {
	text = PrefilterText(text, s.budget)
	fragments := fragmentsOf(text)

	var (
		res      Result
		lastErr  error
		attempts int
	)
	for _, frag := range fragments {
		fr, err := s.structureFragment(ctx, frag)
		if err != nil {
			// a failed fragment is logged and skipped; partial results win
			// over aborting the document
			s.logger.Warn("structurer.fragment.failed", "error", err)
			lastErr = err
			continue
		}
		attempts++
		res.Items = append(res.Items, fr.Items...)
		if res.Supplier == "" {
			res.Supplier = fr.Supplier
		}
		if res.SupplierNIF == "" {
			res.SupplierNIF = fr.SupplierNIF
		}
		if res.OrderNumber == "" {
			res.OrderNumber = fr.OrderNumber
		}
		if res.Provider == "" {
			res.Provider = fr.Provider
		}
	}
	if attempts == 0 && lastErr != nil {
		return Result{}, lastErr
	}
	res.Items = extract.Dedupe(res.Items)
	s.logger.Info("structurer.structure.done",
		"fragments", len(fragments), "items", len(res.Items), "provider", res.Provider)
	return res, nil
}

func fragmentsOf(text string) []string {
	pages := splitNonEmptyPages(text)
	if len(pages) == 0 {
		return []string{text}
	}
	return pages
}

func (s *Structurer) structureFragment(ctx context.Context, text string) (Result, error) {
	system := buildSystemPrompt()
	user := buildUserPrompt(text)

	content, providerName, err := s.complete(ctx, system, user)
	if err != nil {
		return Result{}, err
	}

	raw := []byte(StripCodeFences(content))
	schema := BuildProductsJSONSchema()
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		cleaned, repaired, sErr := SanitizeResponse(raw)
		if sErr != nil {
			return Result{}, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return Result{}, fmt.Errorf("schema validation failed: %w", vErr)
		}
		s.logger.Warn("structurer.lenient_sanitize_applied", "repaired", repaired, "provider", providerName)
		raw = cleaned
	}

	var resp llmResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}

	out := Result{
		Supplier:    resp.Supplier,
		SupplierNIF: resp.SupplierNIF,
		OrderNumber: resp.OrderNumber,
		Provider:    providerName,
	}
	for _, p := range resp.Products {
		it := extract.Item{
			Code:        p.Code,
			Description: p.Description,
			Qty:         numfmt.NormalizeQty(p.Quantity),
			Unit:        p.Unit,
			OrderRef:    p.OrderRef,
			Source:      "llm",
		}.Normalize()
		if it.Valid() {
			out.Items = append(out.Items, it)
		}
	}
	return out, nil
}

// complete walks the chain: primary, then secondary only when the primary
// reported rate limiting, then the fallback for any remaining failure.
func (s *Structurer) complete(ctx context.Context, system, user string) (string, string, error) {
	if s.primary == nil {
		return "", "", errors.New("no structuring provider configured")
	}

	content, err := s.primary.Complete(ctx, system, user)
	if err == nil {
		return content, s.primary.Name(), nil
	}
	s.logger.Warn("structurer.chain.primary_failed", "provider", s.primary.Name(), "error", err)

	if errors.Is(err, ErrRateLimited) && s.secondary != nil {
		content, err = s.secondary.Complete(ctx, system, user)
		if err == nil {
			return content, s.secondary.Name(), nil
		}
		s.logger.Warn("structurer.chain.secondary_failed", "provider", s.secondary.Name(), "error", err)
	}

	if s.fallback != nil {
		content, fErr := s.fallback.Complete(ctx, system, user)
		if fErr == nil {
			return content, s.fallback.Name(), nil
		}
		s.logger.Warn("structurer.chain.fallback_failed", "provider", s.fallback.Name(), "error", fErr)
		err = fErr
	}
	return "", "", err
}

func splitNonEmptyPages(text string) []string {
	var out []string
	for _, p := range acquire.SplitPages(text) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
