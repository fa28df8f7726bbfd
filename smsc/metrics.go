package smsc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smsc",
		Name:      "connections_open",
		Help:      "Hub registrations (AddConnection calls) minus RemoveConnection calls.",
	})

	bindsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smsc",
		Name:      "binds_total",
		Help:      "Completed binds by mode.",
	}, []string{"mode"})

	submitSmTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smsc",
		Name:      "submit_sm_total",
		Help:      "submit_sm requests processed, by resulting status.",
	}, []string{"status"})

	connectionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smsc",
		Name:      "connections_rejected_total",
		Help:      "Connections refused because the open-socket cap was reached.",
	})

	routeMissTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smsc",
		Name:      "route_miss_total",
		Help:      "Delivery receipts that couldn't be matched to a known route.",
	})

	deliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smsc",
		Name:      "delivery_failures_total",
		Help:      "Delivery receipt writes that failed after a route was found.",
	})
)
