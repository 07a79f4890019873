// Package structurer extracts product records from acquired text with an
// LLM, as the fallback behind the deterministic parsers. The provider chain
// is primary credential, then secondary credential on a rate-limit signal
// only, then a general-purpose fallback model. Every response is validated
// against a JSON schema before it is trusted; a lenient sanitize pass gets
// one chance to repair near-miss output.
package structurer

import (
	"context"
	"errors"
)

// ErrRateLimited marks a provider failure caused by rate limiting. Only this
// class of failure promotes the secondary credential.
var ErrRateLimited = errors.New("rate limited")

// Provider is a single chat-completion backend.
type Provider interface {
	Name() string
	// Complete returns the raw model text for a system+user prompt pair.
	Complete(ctx context.Context, system, user string) (string, error)
}
