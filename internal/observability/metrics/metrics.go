// Package metrics exposes Prometheus instrumentation for the assistant.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters for conversation flows. A nil
// receiver is a no-op so instrumentation can be optional.
type ConversationMetrics struct {
	messagesTotal      *prometheus.CounterVec
	bookingsTotal      *prometheus.CounterVec
	stagesTotal        *prometheus.CounterVec
	retrieverFallbacks prometheus.Counter
	gatewayLatency     *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "messages_total",
			Help:      "Total processed messages by routed intent",
		}, []string{"intent"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"status"}),
		stagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "stage_transitions_total",
			Help:      "Turns finishing in each funnel stage",
		}, []string{"stage"}),
		retrieverFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "retriever_fallbacks_total",
			Help:      "Informational turns answered without the knowledge base",
		}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "scheduling",
			Name:      "gateway_latency_seconds",
			Help:      "Latency of scheduling gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.bookingsTotal, m.stagesTotal, m.retrieverFallbacks, m.gatewayLatency)
	return m
}

func (m *ConversationMetrics) ObserveMessage(intent string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(intent).Inc()
}

func (m *ConversationMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveStage(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "idle"
	}
	m.stagesTotal.WithLabelValues(stage).Inc()
}

func (m *ConversationMetrics) ObserveRetrieverFallback() {
	if m == nil {
		return
	}
	m.retrieverFallbacks.Inc()
}

func (m *ConversationMetrics) ObserveGatewayLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(operation).Observe(seconds)
}
