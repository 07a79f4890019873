package parse

import (
	"log/slog"

	"github.com/tmaia/inbound-recon/internal/extract"
)

// OutcomeKind discriminates a parser result.
type OutcomeKind int

const (
	// Parsed: the parser matched and produced at least one item.
	Parsed OutcomeKind = iota
	// ParsedEmpty: the parser matched the layout but found no items.
	ParsedEmpty
	// NotApplicable: this parser does not handle the routed format.
	NotApplicable
)

// Outcome is the discriminated result of a parse attempt.
type Outcome struct {
	Kind  OutcomeKind
	Items []extract.Item
}

// Parser is the capability every registered parser implements.
type Parser interface {
	Name() string
	// FormatTag is the router tag this parser handles; empty means it applies
	// to every document (the generic parser).
	FormatTag() string
	Parse(text string) Outcome
}

// Registry holds the explicit ranked parser list. Priority lives here, in
// one dispatch function, not in incidental code order at call sites.
type Registry struct {
	router *Router
	ranked []Parser
	logger *slog.Logger
}

// NewRegistry builds the production registry: format-specific parsers first,
// the generic parser last.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		router: NewRouter(),
		ranked: []Parser{
			NewEspumalarParser(),
			NewBlocotexParser(),
			NewGenericParser(),
		},
		logger: logger,
	}
}

// NewRegistryWith builds a registry over an explicit parser list, for tests
// and custom deployments.
func NewRegistryWith(parsers []Parser, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{router: NewRouter(), ranked: parsers, logger: logger}
}

// Dispatch routes text to the ranked parsers and returns the first non-empty
// item set together with its source label ("parser:<name>"). An empty result
// means every applicable parser came up empty and the caller may fall back to
// the LLM structurer.
func (r *Registry) Dispatch(text string) ([]extract.Item, string) {
	tag := r.router.Route(text)
	for _, p := range r.ranked {
		if p.FormatTag() != "" && p.FormatTag() != tag {
			continue
		}
		out := p.Parse(text)
		switch out.Kind {
		case Parsed:
			source := "parser:" + p.Name()
			items := make([]extract.Item, 0, len(out.Items))
			for _, it := range out.Items {
				it.Source = source
				items = append(items, it.Normalize())
			}
			r.logger.Info("parse.dispatch.ok", "format", tag, "parser", p.Name(), "items", len(items))
			return items, source
		case ParsedEmpty:
			r.logger.Debug("parse.dispatch.empty", "format", tag, "parser", p.Name())
		case NotApplicable:
			// skip silently
		}
	}
	r.logger.Info("parse.dispatch.none", "format", tag)
	return nil, ""
}

// Route exposes the router classification for callers that persist it.
func (r *Registry) Route(text string) string { return r.router.Route(text) }
