// Package metrics documents the Prometheus metrics exported by berry-stats.
// All metrics are defined in their respective packages (client, pagination,
// workerpool, fetch, history) and registered with the default registry via
// promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by berry-stats.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default gatherer served at /metrics.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric family berry-stats registers.
var Names = []string{
	"berry_http_requests_total",
	"berry_http_request_duration_seconds",
	"berry_http_errors_total",
	"berry_listing_pages_total",
	"berry_pool_jobs_total",
	"berry_pool_active_jobs",
	"berry_pool_teardowns_total",
	"berry_pool_batch_duration_seconds",
	"berry_fetch_runs_total",
	"berry_fetch_run_duration_seconds",
	"berry_history_writes_total",
	"berry_history_errors_total",
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - berry_http_requests_total{host, status} (Counter): Upstream requests by host and HTTP status
//   - berry_http_request_duration_seconds{host} (Histogram): Upstream request duration
//   - berry_http_errors_total{class} (Counter): Failures by class (client, server, network, decode)
//
// Listing Metrics (pkg/pagination):
//   - berry_listing_pages_total{result} (Counter): Listing pages fetched by result
//
// Pool Metrics (pkg/workerpool):
//   - berry_pool_jobs_total{outcome} (Counter): Jobs by outcome (ok, failed, fault, skipped)
//   - berry_pool_active_jobs (Gauge): Jobs currently executing
//   - berry_pool_teardowns_total (Counter): Pool teardowns (one per RunBatch)
//   - berry_pool_batch_duration_seconds (Histogram): RunBatch duration
//
// Run Metrics (pkg/fetch):
//   - berry_fetch_runs_total{mode, outcome} (Counter): Runs by mode and outcome
//   - berry_fetch_run_duration_seconds{mode} (Histogram): Run duration by mode
//
// History Metrics (pkg/history):
//   - berry_history_writes_total{backend, result} (Counter): Run history writes
//   - berry_history_errors_total{backend, operation} (Counter): Run history errors
//
// Example Prometheus Queries:
//
//   # Dropped item rate in concurrent runs
//   rate(berry_pool_jobs_total{outcome="failed"}[5m]) / rate(berry_pool_jobs_total[5m])
//
//   # Aborted sequential runs
//   increase(berry_fetch_runs_total{mode="sequential", outcome="item_error"}[1h])
//
//   # P95 run duration
//   histogram_quantile(0.95, rate(berry_fetch_run_duration_seconds_bucket[5m]))
//
//   # Pool leak check (should return to 0 between runs)
//   berry_pool_active_jobs
