// Package correlation carries the per-request correlation identifier through
// a context.Context. The identifier is bound once at request entry (see
// middleware.CorrelationID) and read by logging, error envelopes, and the
// conversion history without relying on process-wide state.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used to receive and echo the correlation id.
const Header = "X-Correlation-ID"

// ctxKey is unexported so only this package can read or write the binding.
type ctxKey struct{}

// NewID returns a fresh random identifier in canonical 36-char UUID form.
func NewID() string { return uuid.NewString() }

// Resolve returns the caller-supplied value verbatim when it is non-blank,
// otherwise a freshly generated id.
func Resolve(inbound string) string {
	if strings.TrimSpace(inbound) == "" {
		return NewID()
	}
	return inbound
}

// WithID returns a copy of ctx bound to id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the id bound to ctx and whether one was present.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// ID returns the bound id or "unknown" when ctx carries none.
func ID(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return "unknown"
}
