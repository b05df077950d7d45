// Package metrics provides the centralized Prometheus registry reference for
// the harvester. Metrics themselves are defined in their owning packages
// (client, scheduler, images, cache, ratelimit) to keep them next to the
// code they instrument.
//
// This package documents the full metric inventory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - harvester_requests_total{status} (Counter): Registry requests by outcome
//     (HTTP status, "network_error", or "cache_hit")
//   - harvester_request_duration_seconds (Histogram): Chunk page fetch duration
//   - harvester_errors_total{class} (Counter): Errors by class
//     (rate_limited, server, client, malformed, network)
//
// Scheduler Metrics (pkg/scheduler):
//   - harvester_chunks_in_flight (Gauge): Chunk fetches currently running
//   - harvester_chunks_total{state} (Counter): Terminal chunk states
//     (succeeded, failed)
//   - harvester_retries_total{error_class} (Counter): Retry attempts by class
//   - harvester_retry_backoff_seconds{error_class} (Histogram): Backoff waits
//
// Image Metrics (pkg/images):
//   - harvester_images_total{status} (Counter): Image results
//     (downloaded, skipped, failed)
//   - harvester_image_bytes_total (Counter): Bytes written to disk
//
// Cache Metrics (pkg/cache):
//   - harvester_cache_hits_total (Counter): Chunk-response cache hits
//   - harvester_cache_misses_total (Counter): Cache misses
//   - harvester_cache_errors_total{operation} (Counter): Redis operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - harvester_rate_limit_holds_total (Counter): Waits extended by Retry-After
//
// Example Prometheus Queries:
//
//   # Chunk failure rate
//   rate(harvester_chunks_total{state="failed"}[5m]) /
//   rate(harvester_chunks_total[5m])
//
//   # Cache hit rate
//   sum(rate(harvester_cache_hits_total[5m])) /
//   (sum(rate(harvester_cache_hits_total[5m])) + sum(rate(harvester_cache_misses_total[5m])))
//
//   # P95 page fetch latency
//   histogram_quantile(0.95, rate(harvester_request_duration_seconds_bucket[5m]))
