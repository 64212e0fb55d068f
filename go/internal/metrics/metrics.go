package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "poker"

// PrometheusMetrics collects service metrics on a private registry so tests
// can create as many instances as they like.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	connections    prometheus.Counter
	disconnections prometheus.Counter
	roomsCreated   prometheus.Counter
	roomsDeleted   prometheus.Counter
	votes          prometheus.Counter
	reactions      prometheus.Counter
	autoReveals    prometheus.Counter
	timerUpdates   prometheus.Counter
	hostClaims     prometheus.Counter
	eventsHandled  *prometheus.CounterVec

	activeConnections prometheus.Gauge
	activeRooms       prometheus.Gauge
	storeReady        prometheus.Gauge
}

func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &PrometheusMetrics{
		registry:       reg,
		connections:    counter("connections_total", "Websocket connections accepted."),
		disconnections: counter("disconnections_total", "Websocket connections closed."),
		roomsCreated:   counter("rooms_created_total", "Rooms created."),
		roomsDeleted:   counter("rooms_deleted_total", "Rooms deleted after their last player left."),
		votes:          counter("votes_submitted_total", "Votes recorded."),
		reactions:      counter("reactions_sent_total", "Emoji reactions relayed."),
		autoReveals:    counter("timer_auto_reveals_total", "Rounds revealed by an expired timer."),
		timerUpdates:   counter("timer_updates_total", "Timer changes made by hosts."),
		hostClaims:     counter("host_claims_total", "Successful host claims."),
		eventsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Inbound events by type and outcome.",
		}, []string{"type", "outcome"}),
		activeConnections: gauge("active_connections", "Open websocket connections."),
		activeRooms:       gauge("active_rooms", "Rooms known to the store."),
		storeReady:        gauge("store_ready", "1 when the room store is ready."),
	}
}

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the text exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) RoomCreated()       { m.roomsCreated.Inc() }
func (m *PrometheusMetrics) RoomDeleted()       { m.roomsDeleted.Inc() }
func (m *PrometheusMetrics) VoteSubmitted()     { m.votes.Inc() }
func (m *PrometheusMetrics) ReactionSent()      { m.reactions.Inc() }
func (m *PrometheusMetrics) TimerAutoRevealed() { m.autoReveals.Inc() }
func (m *PrometheusMetrics) TimerUpdated()      { m.timerUpdates.Inc() }
func (m *PrometheusMetrics) HostClaimed()       { m.hostClaims.Inc() }

func (m *PrometheusMetrics) ConnectionOpened() {
	m.connections.Inc()
	m.activeConnections.Inc()
}

func (m *PrometheusMetrics) ConnectionClosed() {
	m.disconnections.Inc()
	m.activeConnections.Dec()
}

func (m *PrometheusMetrics) EventHandled(eventType, outcome string) {
	m.eventsHandled.WithLabelValues(eventType, outcome).Inc()
}

func (m *PrometheusMetrics) SetActiveRooms(n int) {
	m.activeRooms.Set(float64(n))
}

func (m *PrometheusMetrics) SetStoreReady(ready bool) {
	if ready {
		m.storeReady.Set(1)
		return
	}
	m.storeReady.Set(0)
}
