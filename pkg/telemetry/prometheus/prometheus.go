// Package prometheus exposes the server's operational gauges and
// counters. Atomic mirrors back every gauge so internal code can read
// current values without touching the prometheus registry; in tests the
// registry is never initialized and the mirrors still work.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const namespace = "harmony"

var (
	connectionCurrent  atomic.Int32
	roomCurrent        atomic.Int32
	participantCurrent atomic.Int32
	producerCurrent    atomic.Int32
	consumerCurrent    atomic.Int32

	promConnectionCurrent  prometheus.Gauge
	promRoomCurrent        prometheus.Gauge
	promParticipantCurrent prometheus.Gauge
	promProducerCurrent    prometheus.Gauge
	promConsumerCurrent    prometheus.Gauge
	promSignalEvents       *prometheus.CounterVec
	promSignalErrors       *prometheus.CounterVec
	promMessageCounter     prometheus.Counter
)

// Init registers the metric set. Call once at startup; everything is
// nil-safe before that.
func Init(nodeID string) {
	labels := prometheus.Labels{"node_id": nodeID}

	promConnectionCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "connection", Name: "total", ConstLabels: labels,
	})
	promRoomCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "room", Name: "total", ConstLabels: labels,
	})
	promParticipantCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "participant", Name: "total", ConstLabels: labels,
	})
	promProducerCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "producer", Name: "total", ConstLabels: labels,
	})
	promConsumerCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "consumer", Name: "total", ConstLabels: labels,
	})
	promSignalEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "signal", Name: "events_total", ConstLabels: labels,
	}, []string{"event"})
	promSignalErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "signal", Name: "errors_total", ConstLabels: labels,
	}, []string{"code"})
	promMessageCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "chat", Name: "messages_total", ConstLabels: labels,
	})

	prometheus.MustRegister(
		promConnectionCurrent,
		promRoomCurrent,
		promParticipantCurrent,
		promProducerCurrent,
		promConsumerCurrent,
		promSignalEvents,
		promSignalErrors,
		promMessageCounter,
	)
}

func AddConnection() {
	connectionCurrent.Inc()
	if promConnectionCurrent != nil {
		promConnectionCurrent.Inc()
	}
}

func SubConnection() {
	connectionCurrent.Dec()
	if promConnectionCurrent != nil {
		promConnectionCurrent.Dec()
	}
}

func RoomStarted() {
	roomCurrent.Inc()
	if promRoomCurrent != nil {
		promRoomCurrent.Inc()
	}
}

func RoomEnded() {
	roomCurrent.Dec()
	if promRoomCurrent != nil {
		promRoomCurrent.Dec()
	}
}

func AddParticipant() {
	participantCurrent.Inc()
	if promParticipantCurrent != nil {
		promParticipantCurrent.Inc()
	}
}

func SubParticipant() {
	participantCurrent.Dec()
	if promParticipantCurrent != nil {
		promParticipantCurrent.Dec()
	}
}

func AddProducer() {
	producerCurrent.Inc()
	if promProducerCurrent != nil {
		promProducerCurrent.Inc()
	}
}

func SubProducer() {
	producerCurrent.Dec()
	if promProducerCurrent != nil {
		promProducerCurrent.Dec()
	}
}

func AddConsumer() {
	consumerCurrent.Inc()
	if promConsumerCurrent != nil {
		promConsumerCurrent.Inc()
	}
}

func SubConsumer() {
	consumerCurrent.Dec()
	if promConsumerCurrent != nil {
		promConsumerCurrent.Dec()
	}
}

func SignalEvent(event string) {
	if promSignalEvents != nil {
		promSignalEvents.WithLabelValues(event).Inc()
	}
}

func SignalError(code string) {
	if promSignalErrors != nil {
		promSignalErrors.WithLabelValues(code).Inc()
	}
}

func MessageSent() {
	if promMessageCounter != nil {
		promMessageCounter.Inc()
	}
}

// Current gauge readings, from the atomic mirrors.
func CurrentConnections() int32 { return connectionCurrent.Load() }
func CurrentRooms() int32       { return roomCurrent.Load() }
func CurrentParticipants() int32 {
	return participantCurrent.Load()
}
func CurrentProducers() int32 { return producerCurrent.Load() }
func CurrentConsumers() int32 { return consumerCurrent.Load() }
