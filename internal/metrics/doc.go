// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements comprehensive application instrumentation using the Prometheus
client library, exposing metrics for monitoring performance, errors, and system health.

# Overview

All collectors are registered with promauto on the default registry when
the package is loaded; there is no Init function. They are split over two
files:
  - domain.go: ingest uploads, audit ledger appends, indexing jobs and
    queue depth, face clusters, search queries
  - metrics.go: general collectors (DuckDB queries, API requests, sync,
    geolocation, caches, WebSocket, circuit breakers, DLQ, NATS, wrapped
    reports, personal access tokens, app info)

# Metrics Endpoint

The ingest API and bridge routers both mount promhttp.Handler() at
/metrics, which serves the Prometheus text format:

	curl http://localhost:3857/metrics

# Metrics Recorded in This Tree

HTTP Metrics (middleware.PrometheusMetrics):
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Requests in flight (gauge)

Circuit Breaker Metrics (internal/modelclient):
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Calls through the breaker (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_consecutive_failures: Current failure streak (gauge)
    Labels: name
  - circuit_breaker_state_transitions_total: State changes (counter)
    Labels: name, from_state, to_state

Audit, Indexing and Search Metrics (domain.go):
  - audit_append_duration_seconds, audit_chain_length: RecordAuditAppend
  - indexing_job_duration_seconds (status), indexing_jobs_total (outcome):
    RecordIndexingJob
  - indexing_modality_items (modality): RecordModalityCount
  - face_clusters_total, face_cluster_noise_total: UpdateFaceClusterCounts
  - search_query_duration_seconds, search_queries_total (mode):
    RecordSearchQuery

ingest_uploads_total and ingest_upload_duration_seconds (RecordUpload) and
indexing_queue_depth (UpdateIndexingQueueDepth) are registered, but no
package in this tree calls RecordUpload or UpdateIndexingQueueDepth. The
other collectors in metrics.go (DuckDB, sync, geolocation, caches,
WebSocket, DLQ, NATS, wrapped reports, tokens, app info) are likewise
registered and not recorded by any caller in this tree.

# Usage Example

Registering the endpoint (collectors need no setup call):

	import (
	    "github.com/tomtom215/opentestimony/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	r.Handle("/metrics", promhttp.Handler())

Recording metrics through the package-level wrappers:

	start := time.Now()
	// ... run the search ...
	metrics.RecordSearchQuery(mode, time.Since(start))

	metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start))

Recording database query metrics:

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "media", time.Since(start), err)

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'cartographus'
	    static_configs:
	      - targets: ['localhost:3857']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Grafana Dashboards

The metrics support Grafana dashboards with panels for:

  - Request rate (queries per second)
  - Request latency (p50, p95, p99 percentiles)
  - Error rate (errors per second by endpoint)
  - Database query performance (duration distribution)
  - Sync operation statistics (records/sec, duration trends)
  - Circuit breaker state visualization
  - Cache hit rate and efficiency

Example PromQL queries:

	# HTTP request rate
	rate(api_requests_total[5m])

	# HTTP p95 latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))

	# Database query rate
	rate(duckdb_query_duration_seconds_count[5m])

	# Cache hit rate
	sum(rate(cache_hits_total[5m])) / (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))

	# Sync records per minute
	rate(sync_records_processed_total[1m]) * 60

# Performance Impact

Metrics collection overhead:
  - Counter increment: ~100ns per operation
  - Histogram observation: ~500ns per operation
  - Memory overhead: ~5KB per metric time series
  - Total overhead: <1% CPU, <10MB RAM for typical workloads

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Endpoint labels carry r.URL.Path, which has no query string; path
    parameters such as media ids are not collapsed, so each distinct path
    is its own series
  - Status codes are recorded as the exact code ("200", "404"), not grouped
  - RecordDBQuery uses up to the first 50 characters of the error message
    as error_type; the other Record functions map errors to fixed strings
  - User-specific labels are avoided

Cardinality per metric:
  - api_requests_total: methods × distinct paths × distinct status codes
  - circuit_breaker_state: one series per model client breaker (5)

# Alerting Rules

Example Prometheus alerting rules:

	groups:
	  - name: cartographus
	    rules:
	      - alert: HighErrorRate
	        expr: |
	          sum(rate(api_requests_total{status_code=~"5.."}[5m]))
	          /
	          sum(rate(api_requests_total[5m]))
	          > 0.05
	        for: 5m
	        annotations:
	          summary: "High error rate: {{ $value }}%"

	      - alert: SlowDatabaseQueries
	        expr: |
	          histogram_quantile(0.95,
	            rate(duckdb_query_duration_seconds_bucket[5m]))
	          > 1
	        for: 5m
	        annotations:
	          summary: "p95 query latency: {{ $value }}s"

	      - alert: CircuitBreakerOpen
	        expr: circuit_breaker_state > 0
	        for: 2m
	        annotations:
	          summary: "Circuit breaker open for {{ $labels.name }}"

# Debugging

Enable metrics debugging with LOG_LEVEL=debug:

	# View all registered metrics
	curl http://localhost:3857/metrics | grep "# HELP"

	# Check specific metric
	curl http://localhost:3857/metrics | grep api_requests_total

	# Validate Prometheus format
	promtool check metrics http://localhost:3857/metrics

# Best Practices

When adding new metrics:

 1. Use appropriate metric types:
    - Counter: Monotonically increasing values (requests, errors)
    - Gauge: Point-in-time values (connections, queue size)
    - Histogram: Distribution of values (latency, size)

 2. Choose descriptive names:
    - Use underscore separation: http_request_duration_seconds
    - Include units: _seconds, _bytes, _total
    - Follow Prometheus naming conventions

 3. Add helpful documentation:
    - Include HELP text describing the metric
    - Document all label dimensions
    - Specify units in metric name

 4. Minimize cardinality:
    - Avoid high-cardinality labels (user IDs, timestamps)
    - Normalize endpoint paths
    - Use fixed error type constants

 5. Test performance impact:
    - Benchmark metric recording overhead
    - Monitor memory usage with many time series
    - Validate scrape duration <1s

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/modelclient: Circuit breaker metrics recording
  - internal/audit, internal/indexing, internal/search: Domain metrics recording
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
  - https://prometheus.io/docs/practices/instrumentation/: Instrumentation guide
*/
package metrics
