package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/chemvision-backend/internal/correlation"
)

// Patterns are applied in this order. UUIDs go first so the loose phone
// pattern cannot eat their digit groups. Correlation ids are UUIDs too,
// which is why the correlation header is logged separately and never
// passed through the redactor.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// alwaysMasked headers never have their values logged.
var alwaysMasked = []string{"Authorization", "Cookie", "Set-Cookie", "Proxy-Authorization"}

// Redactor scrubs request metadata before it reaches the logs. Request
// bodies (names, SMILES, images) are never handed to it and never logged.
type Redactor struct {
	masked map[string]struct{}
}

// NewRedactor returns a Redactor that fully masks the built-in credential
// headers plus extraMasked (case-insensitive).
func NewRedactor(extraMasked ...string) *Redactor {
	r := &Redactor{masked: make(map[string]struct{}, len(alwaysMasked)+len(extraMasked))}
	for _, h := range append(append([]string(nil), alwaysMasked...), extraMasked...) {
		if h = strings.TrimSpace(h); h != "" {
			r.masked[http.CanonicalHeaderKey(h)] = struct{}{}
		}
	}
	return r
}

var defaultRedactor = NewRedactor()

// String replaces ids, email addresses and phone numbers found in s.
func (r *Redactor) String(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// Headers flattens h for logging. Masked headers become "[REDACTED]", the
// correlation header is dropped and everything else goes through String.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	corr := http.CanonicalHeaderKey(correlation.Header)
	for k, vv := range h {
		k = http.CanonicalHeaderKey(k)
		if k == corr {
			continue
		}
		if _, ok := r.masked[k]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.String(strings.Join(vv, ", "))
	}
	return out
}

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra headers whose values are fully masked.
	MaskHeaders []string
}

// RedactingLogger logs the scrubbed request headers and query once per
// request at debug level, after the handler has run so the status is
// known. It complements Logger, which keeps the access line lean.
//
//	r.Use(middleware.Logger())
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}))
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := NewRedactor(opts.MaskHeaders...)

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		headers := red.Headers(c.Request.Header)
		query := red.String(c.Request.URL.RawQuery)

		c.Next()

		cid := correlation.ID(c.Request.Context())
		if cid == "" {
			cid = c.GetHeader(correlation.Header)
		}

		zerolog.Ctx(c.Request.Context()).Debug().
			Str("correlation_id", cid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Interface("headers", headers).
			Msg("http_request_headers")
	}
}
