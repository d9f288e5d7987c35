package server

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Request Metrics
// --------------------------------------------------------------------------

// observeRequest records one handled request: a counter per method and
// status plus a duration histogram per method.
func observeRequest(method string, status int, start time.Time) {
	metrics.GetOrCreateCounter(
		fmt.Sprintf(`drest_requests_total{method=%q,status="%d"}`, method, status),
	).Inc()
	metrics.GetOrCreateHistogram(
		fmt.Sprintf(`drest_request_duration_seconds{method=%q}`, method),
	).UpdateDuration(start)
}

// writeMetrics renders all collected metrics in Prometheus text format.
func writeMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
