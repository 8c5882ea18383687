// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation ids, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (CorrelationID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Every non-2xx response, including 404/405, carries the error envelope
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/chemvision-backend/docs"
	"github.com/tbourn/chemvision-backend/internal/apierr"
	"github.com/tbourn/chemvision-backend/internal/config"
	"github.com/tbourn/chemvision-backend/internal/correlation"
	"github.com/tbourn/chemvision-backend/internal/domain"
	"github.com/tbourn/chemvision-backend/internal/http/handlers"
	"github.com/tbourn/chemvision-backend/internal/http/middleware"
	"github.com/tbourn/chemvision-backend/internal/repo"
	"github.com/tbourn/chemvision-backend/internal/services"
)

// nameRepoShim adapts the repository free functions to the
// services.MappingStore interface, translating the repository's not-found
// error into the service sentinel.
type nameRepoShim struct {
	db *gorm.DB
}

// LookupName proxies repo.GetNameMapping.
func (s nameRepoShim) LookupName(ctx context.Context, name string) (*domain.NameMapping, error) {
	m, err := repo.GetNameMapping(ctx, s.db, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, services.ErrMappingNotFound
	}
	return m, err
}

// imageUploadCost is the number of rate-limit tokens one image upload spends.
const imageUploadCost = 5

// historyQueueSize bounds the conversion records waiting to be written.
const historyQueueSize = 256

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: health, metrics, optional Swagger UI, and the conversion API under
// cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. CorrelationID: resolve/propagate the correlation id
//  3. Logger + RedactingLogger: access log plus scrubbed debug header dump
//  4. Recovery: unhandled faults → INTERNAL_ERROR envelope
//  5. Body size limiter (upload cap)
//  6. Metrics
//  7. Rate limiter (per client IP; health and metrics exempt)
//  8. CORS and Security headers
//  9. Gzip for JSON responses
//
// The returned function drains the background history writer; call it after
// the HTTP server has stopped.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) (drain func(context.Context) error) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.CorrelationID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Unhandled faults to the INTERNAL_ERROR envelope
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxUploadBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP()).
		Exempt("/health", "/metrics").
		Weigh(apiPath(cfg.APIBasePath, "/image-to-structure"), imageUploadCost)
	r.Use(rl.Handler())

	// 8) CORS posture (allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", correlation.Header},
		ExposeHeaders:    []string{correlation.Header, "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
		HTMLPrefixes: []string{"/swagger"},
	}))

	// 9) Compression (metrics and docs are served uncompressed)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		apierr.Abort(c, apierr.CodeNotFound, "Route not found", nil)
	})
	r.NoMethod(func(c *gin.Context) {
		apierr.Abort(c, apierr.CodeMethodNotAllowed, "Method not allowed", nil)
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.Version = cfg.Version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	naming := services.NewNamingService(nameRepoShim{db: db})
	ocsr := services.NewOCSRService()
	history := services.NewHistoryQueue(&services.HistoryService{DB: db}, historyQueueSize)
	h := handlers.New(naming, ocsr, history)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/name-to-structure", h.NameToStructure)
		api.POST("/structure-to-name", h.StructureToName)
		api.POST("/image-to-structure", h.ImageToStructure)
	}

	return history.Close
}

// limitBody caps the request body size at maxBytes. Requests declaring a
// larger Content-Length are rejected up front; otherwise downstream reads
// fail with *http.MaxBytesError once the cap is crossed.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			if c.Request.ContentLength > maxBytes {
				apierr.Abort(c, apierr.CodePayloadTooLarge, "Request body exceeds the upload limit",
					map[string]any{"limit_bytes": maxBytes})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// apiPath joins the API base path and a route the way groupWithPrefix
// mounts it, giving the value c.FullPath reports for that route.
func apiPath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
