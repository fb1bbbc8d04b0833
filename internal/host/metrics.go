package host

import "github.com/prometheus/client_golang/prometheus"

var (
	metricGamesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hostbot_games_active",
		Help: "Sessions currently hosted",
	})
	metricGamesHosted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_games_hosted_total",
		Help: "Sessions created since start",
	})
	metricEventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_events_rejected_total",
			Help: "Events that could not be queued for a session",
		},
		[]string{"reason"}, // not_found|queue_full|closed
	)
)

func init() {
	prometheus.MustRegister(metricGamesActive, metricGamesHosted, metricEventsRejected)
}
