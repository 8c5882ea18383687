// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic and for
// conversion outcomes. Labels are chosen to keep cardinality bounded:
//
//   - method:    HTTP method verb (GET/POST/…)
//   - path:      the registered Gin route (e.g. /api/name-to-structure);
//     requests that matched no route share the "unmatched" label
//   - status:    numeric status code as a string (e.g. "200", "501")
//   - operation: conversion operation (name_to_structure, …)
//   - outcome:   conversion outcome (success, not_implemented, failure)
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/chemvision-backend/internal/domain"
)

// unmatchedPath labels requests that matched no route.
const unmatchedPath = "unmatched"

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of requests currently being processed.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpReqSize captures declared request sizes; uploads dominate the tail.
	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_size_bytes",
			Help: "Declared size of HTTP request bodies in bytes.",
			Buckets: []float64{
				200, 1 << 10, 10 << 10, 100 << 10, // 200B..100KiB
				500 << 10, 1 << 20, 2 << 20, 5 << 20, 10 << 20, // 500KiB..10MiB
			},
		},
		[]string{"method", "path"},
	)

	// conversions counts conversion outcomes per operation.
	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemvision_conversions_total",
			Help: "Conversion requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, conversions)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// ContentLength is -1 when unknown (chunked uploads).
		if n := c.Request.ContentLength; n >= 0 {
			httpReqSize.WithLabelValues(method, path).Observe(float64(n))
		}
	}
}

// ObserveConversion records one conversion outcome.
func ObserveConversion(op domain.Operation, outcome domain.Outcome) {
	conversions.WithLabelValues(string(op), string(outcome)).Inc()
}
