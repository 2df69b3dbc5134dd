// Package metrics collects Prometheus metrics for slots, sessions and the
// signaling relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MaterializationCreated  = "created"
	MaterializationReused   = "reused"
	MaterializationRepaired = "repaired"
	MaterializationFailed   = "failed"
)

// Recorder is the narrow interface the services and the relay depend on.
type Recorder interface {
	RecordSlotsServed(count int)
	RecordSlotRejected(reason string)
	RecordMaterialization(outcome string)
	RecordCallTransition(status string)
	RecordRelayMessage(event string)
	RecordRelayDrop()
	SetRelayConnections(count int)
}

type Collector struct {
	slotsServed      prometheus.Counter
	slotRejections   *prometheus.CounterVec
	materializations *prometheus.CounterVec
	callTransitions  *prometheus.CounterVec
	relayMessages    *prometheus.CounterVec
	relayDrops       prometheus.Counter
	relayConnections prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		slotsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_slots_served_total",
			Help: "Available slots returned to clients.",
		}),
		slotRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consult_slot_rejections_total",
			Help: "Checkout slot verifications that failed, by reason.",
		}, []string{"reason"}),
		materializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consult_session_materializations_total",
			Help: "Booking to session materializations, by outcome.",
		}, []string{"outcome"}),
		callTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consult_call_transitions_total",
			Help: "Session state transitions, by resulting status.",
		}, []string{"status"}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "consult_relay_messages_total",
			Help: "Signaling events processed by the relay, by event type.",
		}, []string{"event"}),
		relayDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consult_relay_dropped_total",
			Help: "Signaling messages dropped because a peer buffer was full.",
		}),
		relayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consult_relay_connections",
			Help: "Open signaling connections.",
		}),
	}

	reg.MustRegister(
		c.slotsServed,
		c.slotRejections,
		c.materializations,
		c.callTransitions,
		c.relayMessages,
		c.relayDrops,
		c.relayConnections,
	)

	return c
}

func (c *Collector) RecordSlotsServed(count int) {
	c.slotsServed.Add(float64(count))
}

func (c *Collector) RecordSlotRejected(reason string) {
	c.slotRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordMaterialization(outcome string) {
	c.materializations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCallTransition(status string) {
	c.callTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordRelayMessage(event string) {
	c.relayMessages.WithLabelValues(event).Inc()
}

func (c *Collector) RecordRelayDrop() {
	c.relayDrops.Inc()
}

func (c *Collector) SetRelayConnections(count int) {
	c.relayConnections.Set(float64(count))
}

// Noop discards everything. Used when metrics are disabled and in tests.
type Noop struct{}

func (Noop) RecordSlotsServed(int) {}
func (Noop) RecordSlotRejected(string) {}
func (Noop) RecordMaterialization(string) {}
func (Noop) RecordCallTransition(string) {}
func (Noop) RecordRelayMessage(string) {}
func (Noop) RecordRelayDrop() {}
func (Noop) SetRelayConnections(int) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
