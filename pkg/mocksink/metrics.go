package mocksink

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsReceived counts stream requests by variant kind.
	RequestsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mock_sink_requests_total",
		Help: "Total number of sink stream requests received by kind",
	}, []string{"kind"})

	// RowsWritten counts JSON payload rows accepted by write batches.
	RowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mock_sink_rows_written_total",
		Help: "Total number of JSON rows written",
	})

	// ChunkBytes counts opaque stream chunk bytes accepted.
	ChunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mock_sink_chunk_bytes_total",
		Help: "Total number of stream chunk payload bytes accepted",
	})
)

// ServeMetrics starts an HTTP server on addr serving Prometheus metrics
// at /metrics.
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go server.ListenAndServe()
	return server
}
