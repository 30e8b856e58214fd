// Package metrics exposes the Prometheus counters the producer and consumer
// pipelines update, grounded on the teacher's own metrics.go
// (prometheus/client_golang). Scrape them over promhttp.Handler() on the
// operator-configured --metrics-addr (SPEC_FULL §4.10).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_published_total",
		Help: "Total number of envelopes successfully published to the bus.",
	})

	PublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_publish_errors_total",
		Help: "Total number of publish attempts that failed and were retried.",
	})

	ReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_reconnects_total",
		Help: "Total number of times the connection supervisor installed a fresh connection.",
	})

	ConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_consumed_total",
		Help: "Total number of messages received from the bus (subscriber or stream mode).",
	})

	DecodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_decode_errors_total",
		Help: "Total number of envelopes that failed to decode (MalformedEnvelope).",
	})

	AckTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_ack_total",
		Help: "Total number of stream-mode messages acknowledged.",
	})

	NakTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_nak_total",
		Help: "Total number of stream-mode messages left unacknowledged after a handler or decode failure.",
	})

	FetchTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "borealis_fetch_timeouts_total",
		Help: "Total number of fetch/receive deadlines that expired without a message.",
	})
)

func init() {
	prometheus.MustRegister(
		PublishedTotal,
		PublishErrorsTotal,
		ReconnectsTotal,
		ConsumedTotal,
		DecodeErrorsTotal,
		AckTotal,
		NakTotal,
		FetchTimeoutsTotal,
	)
}

// Serve starts a blocking HTTP server exposing /metrics on addr. Callers
// run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
