package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_push_sent_total",
		Help: "Push notifications accepted by an endpoint.",
	})

	pushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_push_failures_total",
		Help: "Push notification attempts that failed (expired or unreachable endpoints).",
	})
)
