package dbtask

import "github.com/prometheus/client_golang/prometheus"

var (
	metricConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hostbot_db_connections",
			Help: "Pooled backend connections by state",
		},
		[]string{"state"}, // idle|live
	)
	metricOutstanding = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hostbot_db_outstanding_tasks",
		Help: "Tasks holding a lease that has not been reclaimed",
	})
	metricSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_db_tasks_submitted_total",
			Help: "Tasks submitted to the dispatcher",
		},
		[]string{"category"},
	)
	metricFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_db_tasks_failed_total",
			Help: "Tasks that finished with an error",
		},
		[]string{"category"},
	)
	metricSpawnRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_db_worker_spawn_retries_total",
		Help: "Worker starts retried after the budget was exhausted",
	})
	metricSpawnFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_db_worker_spawn_failures_total",
		Help: "Worker starts abandoned after the retry",
	})
	metricEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hostbot_db_connection_evictions_total",
		Help: "Connections closed on reclaim because the idle queue was full",
	})
	metricOrphans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hostbot_db_orphan_tasks",
		Help: "Tasks adopted from torn down sessions and not yet reclaimed",
	})
)

func init() {
	prometheus.MustRegister(
		metricConnections,
		metricOutstanding,
		metricSubmitted,
		metricFailed,
		metricSpawnRetries,
		metricSpawnFailures,
		metricEvictions,
		metricOrphans,
	)
}
