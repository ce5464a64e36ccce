package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections tracks live websocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections",
		Help: "Number of live websocket connections.",
	})

	// OnlineIdentities tracks identities with at least one connection.
	OnlineIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_identities",
		Help: "Number of identities currently online.",
	})

	// MessagesRelayed counts messages relayed to room members.
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_relayed_total",
		Help: "Total messages relayed to conversation rooms.",
	})

	// EventsDropped counts events dropped on slow client send buffers.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_dropped_total",
		Help: "Total events dropped because a client buffer was full.",
	})
)
