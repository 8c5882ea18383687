// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides correlation id binding, structured request logging and
// a panic-safe recovery handler:
//
//   - CorrelationID() resolves the X-Correlation-ID for every request, binds
//     it to the request context and echoes it on the response.
//   - Logger() emits structured access logs with request/response metadata
//     (latency, status, sizes) and binds a request-scoped zerolog.Logger to
//     the request context so services can log through zerolog.Ctx.
//   - Recovery() converts panics into the INTERNAL_ERROR envelope while
//     preserving the correlation id and emitting a stack trace to logs.
//   - LoggerFrom() retrieves the request-scoped logger inside handlers.
//
// Recommended order:
//  1. CorrelationID()
//  2. Logger() (and RedactingLogger for debug header dumps)
//  3. Recovery()
//
// so that panics and errors include the correlation id and are logged.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chemvision-backend/internal/apierr"
	"github.com/tbourn/chemvision-backend/internal/correlation"
)

const (
	// correlationKey is the Gin context key under which the correlation id is stored.
	correlationKey = "correlationID"
	// loggerKey is the Gin context key for the request-scoped logger.
	loggerKey = "logger"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// CorrelationID attaches (or propagates) a correlation identifier per request.
//
// A non-blank inbound X-Correlation-ID is reused verbatim; otherwise a new
// UUIDv4 is generated. The id is stored in the request context (see package
// correlation) together with a zerolog logger carrying correlation_id, in the
// Gin context under "correlationID", and on the response header before any
// handler runs, so every response carries it whatever its outcome.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := correlation.Resolve(c.GetHeader(correlation.Header))
		l := log.With().Str("correlation_id", id).Logger()
		ctx := l.WithContext(correlation.WithID(c.Request.Context(), id))
		c.Request = c.Request.WithContext(ctx)
		c.Set(correlationKey, id)
		c.Writer.Header().Set(correlation.Header, id)
		c.Next()
	}
}

// Logger writes a structured access log for each request and response.
//
// Features:
//   - Records method, path (route when available), remote IP, UA, referer,
//     correlation id, request size, response status, latency and bytes written.
//   - Binds a request-scoped zerolog.Logger to the request context and to the
//     Gin context (key "logger").
//   - Chooses log level based on outcome:
//   - error() for 5xx or when Gin context contains errors,
//   - warn()  for 4xx,
//   - info()  otherwise.
//
// Note: place this after CorrelationID() so logs include the correlation id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			// Fallback when route not matched / 404.
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("correlation_id", correlation.ID(c.Request.Context())).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(defaultRedactor.String(c.Request.URL.RawQuery), maxQueryLogLength)).
			// ContentLength can be -1 if unknown.
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Set(loggerKey, &l)

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status == http.StatusNotImplemented:
			ev.Warn().Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs them with a stack trace, and answers with
// the INTERNAL_ERROR envelope. Panic details never reach the caller.
//
// If the handler already wrote a response, only the status is aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFrom(c).Error().
					Str("exc_type", fmt.Sprintf("%T", rec)).
					Str("exc_message", fmt.Sprint(rec)).
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("unhandled_exception")

				if !c.Writer.Written() {
					apierr.Abort(c, apierr.CodeInternal, apierr.MsgInternal, nil)
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger.
//
// If Logger() did not run, a logger carrying only the correlation id (when
// known) is returned. Callers can use the result without nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	lc := log.With()
	if c.Request != nil {
		if id, ok := correlation.FromContext(c.Request.Context()); ok {
			lc = lc.Str("correlation_id", id)
		}
	}
	l := lc.Logger()
	return &l
}

// truncate returns s unchanged when within max length, otherwise it truncates
// s to max bytes and appends an ellipsis. A max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
