package httptransport

import "github.com/prometheus/client_golang/prometheus"

var (
	metricGameCreateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_http_game_create_total",
		Help: "Host requests received",
	})
	metricGameCreateErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_http_game_create_errors_total",
		Help: "Host requests that failed",
	})
	metricEventSubmitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_http_event_submit_total",
			Help: "Session events submitted over HTTP",
		},
		[]string{"kind"},
	)
	metricEventSubmitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_http_event_submit_errors_total",
		Help: "Session events rejected before reaching the session",
	})
	metricStreamConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_http_stream_connections_total",
		Help: "Outbox stream connections opened",
	})
	metricStreamConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hostbot_http_stream_connections_active",
		Help: "Outbox stream connections currently open",
	})
)

func init() {
	prometheus.MustRegister(
		metricGameCreateTotal,
		metricGameCreateErrors,
		metricEventSubmitTotal,
		metricEventSubmitErrors,
		metricStreamConnectionsTotal,
		metricStreamConnectionsActive,
	)
}
