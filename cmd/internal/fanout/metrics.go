package fanout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_fanout_events_published_total",
		Help: "Typed events successfully handed to the bus, by event name.",
	}, []string{"event"})

	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_fanout_publish_failures_total",
		Help: "Bus publish failures, by event name. Failures are logged, never fatal.",
	}, []string{"event"})

	subscriberDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_fanout_subscriber_drops_total",
		Help: "Envelopes dropped because a subscriber queue was full or closing.",
	})
)
