// Package metrics exposes the Prometheus registry used by the client.
// Metrics are defined in their respective packages (client, endpoint,
// fanout, ratelimit) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Transport Metrics (pkg/client):
//   - eikon_requests_total{path, status} (Counter): Proxy requests by path and HTTP status
//   - eikon_request_duration_seconds{path} (Histogram): Request duration by path
//   - eikon_transport_errors_total{class} (Counter): Failures by class (network, canceled, status, decode, request)
//
// Endpoint Metrics (pkg/endpoint):
//   - eikon_resolve_probes_total{result} (Counter): Status probes by result (alive, dead)
//
// Dispatch Metrics (pkg/fanout):
//   - eikon_chunks_total{direction, outcome} (Counter): Chunks by outcome (data, empty, error)
//   - eikon_chunk_retries_total{direction} (Counter): Retries after transient failures
//   - eikon_dispatch_duration_seconds{direction} (Histogram): Wall time of one dispatch
//   - eikon_chunks_in_flight (Gauge): Chunk calls currently running
//
// Quota Metrics (pkg/ratelimit):
//   - eikon_quota_remaining (Gauge): Calls left in the current UTC day
//   - eikon_quota_blocks_total (Counter): Launches refused at the critical threshold
//   - eikon_quota_throttles_total (Counter): Launches delayed at the warning threshold
//
// Example Prometheus Queries:
//
//   # Empty chunk ratio
//   sum(rate(eikon_chunks_total{outcome="empty"}[5m])) / sum(rate(eikon_chunks_total[5m]))
//
//   # Quota status
//   eikon_quota_remaining < 500
//
//   # Transport error rate
//   rate(eikon_transport_errors_total[5m])
//
//   # P95 dispatch latency
//   histogram_quantile(0.95, rate(eikon_dispatch_duration_seconds_bucket[5m]))
