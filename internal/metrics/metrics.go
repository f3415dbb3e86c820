package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OutboundCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyvibes_outbound_calls_total",
			Help: "Total outbound API calls by service and status",
		},
		[]string{"service", "status"},
	)

	OutboundLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyvibes_outbound_latency_seconds",
			Help:    "Outbound API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyvibes_pipeline_runs_total",
			Help: "Weather notification runs by outcome",
		},
		[]string{"outcome"},
	)

	MessagesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyvibes_messages_dispatched_total",
			Help: "Push messages handed to the relay, by ticket status",
		},
		[]string{"status"},
	)

	GeocodeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyvibes_geocode_fallbacks_total",
			Help: "Devices whose place name fell back to the placeholder",
		},
	)
)

// Service labels for outbound calls.
const (
	ServiceWeather   = "open_meteo"
	ServiceGeocoder  = "geocoder"
	ServicePushRelay = "push_relay"
)

// Status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ObserveCall records one outbound call.
func ObserveCall(service string, seconds float64, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	OutboundCallsTotal.WithLabelValues(service, status).Inc()
	OutboundLatency.WithLabelValues(service).Observe(seconds)
}
