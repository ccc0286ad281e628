// Package metrics exposes Prometheus counters for the chat session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peerchat"

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

var (
	// framesTotal counts frames crossing the connection by direction and type.
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of frames sent or received",
		},
		[]string{"direction", "type"},
	)

	// messagesTotal counts chat messages appended to the log.
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of chat messages by direction",
		},
		[]string{"direction"}, // direction: outgoing, incoming
	)

	// sessionStatus is 0 disconnected, 1 connected, 2 idle.
	sessionStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_status",
			Help:      "Current session status (0 disconnected, 1 connected, 2 idle)",
		},
	)

	// inboxDepth is the number of received messages waiting for delivery.
	inboxDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_depth",
			Help:      "Number of received frames waiting in the inbound queue",
		},
	)

	allMetrics = []prometheus.Collector{
		framesTotal,
		messagesTotal,
		sessionStatus,
		inboxDepth,
	}
)

// RecordFrame records one frame sent or received.
func RecordFrame(direction, frameType string) {
	framesTotal.WithLabelValues(direction, frameType).Inc()
}

// RecordMessage records a message appended to the chat log.
func RecordMessage(direction string) {
	messagesTotal.WithLabelValues(direction).Inc()
}

// SetStatus publishes the session status code.
func SetStatus(code int) {
	sessionStatus.Set(float64(code))
}

// SetInboxDepth publishes the inbound queue length.
func SetInboxDepth(n int) {
	inboxDepth.Set(float64(n))
}
