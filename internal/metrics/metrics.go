// Package metrics registers the Prometheus instrumentation for the relay.
// Every silent-drop path in the delivery pipeline has a counter here so
// operators can tell healthy silence from lost events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay service.
type Metrics struct {
	// Auth
	Logins        prometheus.Counter
	LoginFailures prometheus.Counter

	// Delivery
	EventsDelivered         prometheus.Counter
	EventsDroppedNoConn     prometheus.Counter
	EventsDroppedBufferFull prometheus.Counter

	// Dispatcher
	CommandsEnqueued prometheus.Counter
	CommandsUnknown  prometheus.Counter

	// Streams
	ActiveStreams      prometheus.Gauge
	StreamsOpened      prometheus.Counter
	StreamsSuperseded  prometheus.Counter
	ExpiredStreamOpens prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_login_failures_total",
			Help: "Total number of rejected login attempts",
		}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_events_delivered_total",
			Help: "Total number of events enqueued onto a live connection",
		}),
		EventsDroppedNoConn: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_events_dropped_no_connection_total",
			Help: "Total number of events dropped because the session had no open stream",
		}),
		EventsDroppedBufferFull: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_events_dropped_buffer_full_total",
			Help: "Total number of events dropped because the connection buffer was full",
		}),
		CommandsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_commands_enqueued_total",
			Help: "Total number of client commands accepted by the dispatcher queue",
		}),
		CommandsUnknown: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_commands_unknown_total",
			Help: "Total number of commands with an unrecognized type tag",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_streams",
			Help: "Current number of open event streams",
		}),
		StreamsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_streams_opened_total",
			Help: "Total number of event streams opened",
		}),
		StreamsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_streams_superseded_total",
			Help: "Total number of connections replaced by a newer stream for the same session",
		}),
		ExpiredStreamOpens: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_expired_stream_opens_total",
			Help: "Total number of stream opens for sessions that were never authenticated",
		}),
	}
}

// NewForTest creates metrics on a private registry, for use in tests.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
