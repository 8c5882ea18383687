// Package apierr defines the machine-readable error taxonomy used across all
// API endpoints and the single envelope every non-2xx response carries.
//
// Conventions:
//   - Codes are UPPER_SNAKE_CASE and stable across releases; clients branch on
//     them, never on the message.
//   - StatusOf is the only place that maps a code to an HTTP status.
//   - Abort is the only place that writes an envelope. It always stamps the
//     request's correlation id and logs server-side (5xx) failures, except
//     NOT_IMPLEMENTED.
//
// Example response:
//
//	HTTP/1.1 501 Not Implemented
//	X-Correlation-ID: 1b4e28ba-2fa1-11d2-883f-0016d3cca427
//	{
//	  "error_code": "NOT_IMPLEMENTED",
//	  "message": "Structure to name conversion is not yet implemented",
//	  "details": null,
//	  "correlation_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
//	}
package apierr

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/chemvision-backend/internal/correlation"
)

// Code is a stable, machine-readable error identifier.
type Code string

// Conversion taxonomy.
const (
	CodeNotImplemented   Code = "NOT_IMPLEMENTED"
	CodeConversionError  Code = "CONVERSION_ERROR"
	CodeInvalidImageType Code = "INVALID_IMAGE_TYPE"
	CodeInternal         Code = "INTERNAL_ERROR"

	// CodeValidation is the framework-level category for input that fails
	// shape or length constraints.
	CodeValidation Code = "VALIDATION_ERROR"
)

// Transport-level codes, emitted by middleware and router fallbacks only.
const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
)

// Generic caller-facing message for faults that escaped every handler.
const MsgInternal = "An unexpected error occurred"

var statusByCode = map[Code]int{
	CodeNotImplemented:   http.StatusNotImplemented,
	CodeConversionError:  http.StatusInternalServerError,
	CodeInvalidImageType: http.StatusBadRequest,
	CodeValidation:       http.StatusUnprocessableEntity,
	CodeInternal:         http.StatusInternalServerError,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
}

// StatusOf returns the HTTP status for code. Unknown codes map to 500.
func StatusOf(code Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Codes returns every code in the taxonomy.
func Codes() []Code {
	out := make([]Code, 0, len(statusByCode))
	for c := range statusByCode {
		out = append(out, c)
	}
	return out
}

// Envelope is the body of every non-2xx response.
type Envelope struct {
	// Stable, machine-readable code
	Code Code `json:"error_code" example:"NOT_IMPLEMENTED" swaggertype:"string"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Structure to name conversion is not yet implemented"`
	// Optional structured context, null when absent
	Details map[string]any `json:"details"`
	// Correlates server logs and client errors
	CorrelationID string `json:"correlation_id" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427"`
}

// New builds an envelope for the request bound to c.
func New(c *gin.Context, code Code, msg string, details map[string]any) Envelope {
	return Envelope{
		Code:          code,
		Message:       msg,
		Details:       details,
		CorrelationID: correlationID(c),
	}
}

// Abort writes the envelope for code with its mapped status and stops the
// handler chain. Server-side failures are logged with the request logger.
func Abort(c *gin.Context, code Code, msg string, details map[string]any) {
	status := StatusOf(code)
	env := New(c, code, msg, details)

	// NOT_IMPLEMENTED is an expected outcome; handlers log it at warn.
	if status >= http.StatusInternalServerError && code != CodeNotImplemented {
		zerolog.Ctx(requestContext(c)).Error().
			Int("status", status).
			Str("code", string(code)).
			Str("message", msg).
			Msg("api error")
	}

	c.Header(correlation.Header, env.CorrelationID)
	c.AbortWithStatusJSON(status, env)
}

// correlationID prefers the id bound to the request context and falls back
// to the response header set by the correlation middleware.
func correlationID(c *gin.Context) string {
	if id, ok := correlation.FromContext(requestContext(c)); ok {
		return id
	}
	if id := c.Writer.Header().Get(correlation.Header); id != "" {
		return id
	}
	return "unknown"
}

func requestContext(c *gin.Context) context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
