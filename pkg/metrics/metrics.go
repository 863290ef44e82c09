// Package metrics exposes the Prometheus registry used by the batch client.
// Metrics are defined in their respective packages (async, client,
// ratelimit, monitor) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the batch client.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Async Resolution Metrics (pkg/async):
//   - odata_async_resolutions_total{outcome} (Counter): Resolutions by outcome (final, pending, error)
//   - odata_async_cleanup_failures_total (Counter): 202 bodies that failed to drain or close
//
// Request Metrics (pkg/client):
//   - odata_batch_requests_total{status} (Counter): Batch requests by HTTP status
//   - odata_batch_request_duration_seconds (Histogram): Batch request duration including retries
//   - odata_batch_errors_total{class} (Counter): Errors by class (client, server, throttled, network)
//
// Retry Metrics (pkg/client):
//   - odata_batch_retries_total{error_class} (Counter): Retry attempts by error class
//   - odata_batch_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - odata_batch_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Throttle Metrics (pkg/ratelimit):
//   - odata_throttle_blocks_total (Counter): Requests blocked by an open throttle window
//   - odata_throttle_updates_total{status} (Counter): Throttle windows opened by status (429, 503)
//
// Monitor Store Metrics (pkg/monitor):
//   - odata_monitor_saved_total (Counter): Pending monitors saved
//   - odata_monitor_errors_total{operation} (Counter): Store errors by operation
//
// Example Prometheus Queries:
//
//   # Share of batches answered asynchronously
//   sum(rate(odata_async_resolutions_total{outcome="pending"}[5m])) /
//   sum(rate(odata_async_resolutions_total[5m]))
//
//   # Protocol violations on 202 Accepted
//   rate(odata_async_resolutions_total{outcome="error"}[5m])
//
//   # P95 Batch Latency
//   histogram_quantile(0.95, rate(odata_batch_request_duration_seconds_bucket[5m]))
