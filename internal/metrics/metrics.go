package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels publishes the broker acknowledged.
	OutcomeSuccess = "success"
	// OutcomeError labels publishes that failed or timed out.
	OutcomeError = "error"
)

const namespace = "aetheris"

var (
	messagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Inbound broker messages handled by the hub, partitioned by topic class.",
		},
		[]string{"class"},
	)

	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound payloads that failed to decode, partitioned by topic class.",
		},
		[]string{"class"},
	)

	dispatchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_seconds",
			Help:      "Time spent dispatching one inbound message.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	publishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Outbound publishes, partitioned by message class and outcome.",
		},
		[]string{"class", "outcome"},
	)

	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Hub events discarded because the event queue was full.",
		},
		[]string{"kind"},
	)

	alertsSynthesized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_synthesized_total",
			Help:      "Anomaly reports derived from inbound commands, by severity.",
		},
		[]string{"severity"},
	)

	alertsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deduplicated_total",
			Help:      "Alerts suppressed because the same anomaly id was already handled.",
		},
	)

	fleetUnits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fleet_units",
			Help:      "Tracked units by liveness state after the last sweep.",
		},
		[]string{"state"},
	)

	brokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 when the broker session is up, 0 otherwise.",
		},
	)
)

// Register attaches aetheris collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		messagesDispatched,
		decodeErrors,
		dispatchSeconds,
		publishesTotal,
		eventsDropped,
		alertsSynthesized,
		alertsDeduplicated,
		fleetUnits,
		brokerConnected,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDispatch records one handled inbound message.
func ObserveDispatch(class string, duration time.Duration) {
	messagesDispatched.WithLabelValues(class).Inc()
	if duration < 0 {
		duration = 0
	}
	dispatchSeconds.Observe(duration.Seconds())
}

// DecodeError counts a malformed inbound payload.
func DecodeError(class string) {
	decodeErrors.WithLabelValues(class).Inc()
}

// ObservePublish records an outbound publish outcome.
func ObservePublish(class string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	publishesTotal.WithLabelValues(class, outcome).Inc()
}

// EventDropped counts an event discarded by a full queue.
func EventDropped(kind string) {
	eventsDropped.WithLabelValues(kind).Inc()
}

// AlertSynthesized counts a derived alert.
func AlertSynthesized(severity string) {
	alertsSynthesized.WithLabelValues(severity).Inc()
}

// AlertDeduplicated counts an alert suppressed as a repeat.
func AlertDeduplicated() {
	alertsDeduplicated.Inc()
}

// SetFleetUnits publishes the fleet liveness breakdown.
func SetFleetUnits(online, offline, heartbeatOnly int) {
	fleetUnits.WithLabelValues("online").Set(float64(online))
	fleetUnits.WithLabelValues("offline").Set(float64(offline))
	fleetUnits.WithLabelValues("heartbeat_only").Set(float64(heartbeatOnly))
}

// SetBrokerConnected flips the broker connectivity gauge.
func SetBrokerConnected(up bool) {
	if up {
		brokerConnected.Set(1)
		return
	}
	brokerConnected.Set(0)
}
