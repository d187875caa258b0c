// Package metrics exposes pipeline counters on a dedicated Prometheus
// listener.
package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsIngested counts events stored by source adapters, per source
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_events_ingested_total",
		Help: "Events ingested and persisted, by source.",
	}, []string{"source"})

	// EventsProcessed counts batch-processor outcomes, per terminal status
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_events_processed_total",
		Help: "Events drained by the batch processor, by terminal status.",
	}, []string{"status"})

	// IncidentsCreated counts synthesized incidents, per source
	IncidentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_incidents_created_total",
		Help: "Incidents synthesized from high-severity events, by source.",
	}, []string{"source"})

	// PublishFailures counts broker publishes that failed after reconnect
	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_broker_publish_failures_total",
		Help: "Best-effort broker publishes that failed, by topic.",
	}, []string{"topic"})

	// PollSkips counts poll cycles skipped (not-modified, rate-limit, overlap)
	PollSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsewatch_poll_skips_total",
		Help: "Poll cycles that did no work, by reason.",
	}, []string{"reason"})

	// StreamRestarts counts health-check restarts of the stream adapter
	StreamRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsewatch_stream_restarts_total",
		Help: "Stream adapter restarts triggered by the health check.",
	})
)

// Serve starts the metrics HTTP listener. Blocks, so callers run it in a
// goroutine.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Metrics listener on %s", addr)
	return http.ListenAndServe(addr, mux)
}
