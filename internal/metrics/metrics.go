package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierselect_events_dispatched_total",
		Help: "Total number of lifecycle events dispatched to rules, labelled by event type.",
	}, []string{"event"})

	RuleCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierselect_rule_callbacks_total",
		Help: "Total number of rule callbacks, labelled by rule name and status.",
	}, []string{"rule", "status"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hierselect_dispatch_duration_seconds",
		Help:    "Time spent running every rule for one lifecycle event.",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
	})

	LazyLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierselect_lazy_loads_total",
		Help: "Lazy load activity, labelled by status (started, applied, failed, dropped, cancelled, stale).",
	}, []string{"status"})

	SelectedNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hierselect_selected_nodes",
		Help: "Number of selected nodes after the most recent trigger.",
	})

	BusMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hierselect_bus_messages_total",
		Help: "Messages published on the coordination bus, labelled by channel.",
	}, []string{"channel"})

	LoadQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hierselect_load_queue_utilization",
		Help: "Fraction of the lazy-load queue in use (0-1) at the last readiness probe.",
	})

	FilterMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hierselect_filter_matches",
		Help:    "Number of dataset records matching a cyclical filter pass.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)
