package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	DocumentsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{Name: "extractor_documents_enqueued_total", Help: "Documents accepted into the queue"})
	ItemOutcomes      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "extractor_items_total", Help: "Processed items by outcome"}, []string{"outcome"})
	GatewayLatency    = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "extractor_gateway_seconds",
		Help:    "Latency of one extraction call",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
	})
	PacingSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "extractor_pacing_seconds_total", Help: "Time spent in pacing delays by reason"}, []string{"reason"})
	BatchRuns     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "extractor_batch_runs_total", Help: "Finished batch runs by final status"}, []string{"status"})
	InFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "extractor_inflight", Help: "Gateway calls in flight (0 or 1)"})
	ExportsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "extractor_exports_total", Help: "Workbook exports by sink"}, []string{"sink"})
)

func register() {
	once.Do(func() {
		prometheus.MustRegister(
			DocumentsEnqueued,
			ItemOutcomes,
			GatewayLatency,
			PacingSeconds,
			BatchRuns,
			InFlightGauge,
			ExportsTotal,
		)
	})
}

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	register()
	return promhttp.Handler()
}
