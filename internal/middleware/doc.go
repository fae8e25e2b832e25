// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. These
components work alongside the authentication middleware to create a complete
middleware stack for HTTP request processing.

Key Components:

  - Compression: Gzip compression for clients that accept gzip
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The ingest API and bridge routers (internal/ingestapi, internal/bridgeapi)
install these as chi middleware, outermost first:

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))   // Request tracking
	r.Use(chiMiddleware(middleware.Compression)) // Gzip
	r.Use(cors.Handler(...))                     // CORS headers (go-chi/cors)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Rate limiting and session authentication are added per route group in
those routers; this package provides neither.

Usage Example - Compression:

	import "github.com/tomtom215/opentestimony/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/data",
	    middleware.Compression(handler),
	)

	// Every response is compressed, whatever its size, when the
	// request's Accept-Encoding header contains gzip

Usage Example - Performance Monitoring:

	// Create performance monitor keeping the 1000 most recent requests
	perfMon := middleware.NewPerformanceMonitor(1000)

	// Wrap handler (an http.Handler)
	http.Handle("/api/v1/stats",
	    perfMon.Middleware(handler),
	)

	// Get per-endpoint statistics (durations in milliseconds)
	for _, s := range perfMon.GetStats() {
	    fmt.Printf("%s p50: %d, p95: %d, p99: %d\n",
	        s.Path, s.P50Duration, s.P95Duration, s.P99Duration)
	}

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: slice of recent latency samples under sync.RWMutex

Compression Details:

The compression middleware:
  - Compresses every response when Accept-Encoding contains gzip; there
    is no size threshold and no content-type filter
  - Skips WebSocket upgrade requests
  - Sets the Content-Encoding header and removes Content-Length
  - Does not implement http.Flusher, so streamed output is not flushed
    before the handler returns

Performance Monitor:

The performance monitor tracks:
  - Request count and min/avg/max latency per endpoint
  - Latency percentiles (p50, p95, p99)
  - Rolling window of the maxMetrics most recent requests (the
    NewPerformanceMonitor argument)
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression uses per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/auth: Authentication middleware
  - internal/ingestapi, internal/bridgeapi: HTTP routers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
