package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "chatcommerce"

// WebhookMetrics exposes counters/histograms for the webhook endpoint.
type WebhookMetrics struct {
	eventsTotal    *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook deliveries by payload kind and outcome",
		}, []string{"kind", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *WebhookMetrics) ObserveLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}

// CommerceMetrics tracks the conversation pipeline downstream of the webhook.
type CommerceMetrics struct {
	statusTransitions *prometheus.CounterVec
	gateStops         *prometheus.CounterVec
	replies           *prometheus.CounterVec
	orders            *prometheus.CounterVec
	outbound          *prometheus.CounterVec
}

func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	m := &CommerceMetrics{
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "status_transitions_total",
			Help:      "Delivery status updates by status and result (applied, ignored, unknown, error)",
		}, []string{"status", "result"}),
		gateStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gating",
			Name:      "stops_total",
			Help:      "Inbound messages stopped by a gate",
		}, []string{"gate"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replies",
			Name:      "resolved_total",
			Help:      "Replies produced by resolver stage",
		}, []string{"stage"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "assembled_total",
			Help:      "Order assembly attempts by result",
		}, []string{"result"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbound",
			Name:      "sends_total",
			Help:      "Outbound WhatsApp sends by kind and result",
		}, []string{"kind", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.statusTransitions, m.gateStops, m.replies, m.orders, m.outbound)
	return m
}

func (m *CommerceMetrics) ObserveStatusTransition(status, result string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status, result).Inc()
}

func (m *CommerceMetrics) ObserveGateStop(gate string) {
	if m == nil {
		return
	}
	m.gateStops.WithLabelValues(gate).Inc()
}

func (m *CommerceMetrics) ObserveReply(stage string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(stage).Inc()
}

func (m *CommerceMetrics) ObserveOrder(result string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(result).Inc()
}

func (m *CommerceMetrics) ObserveSend(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.outbound.WithLabelValues(kind, result).Inc()
}
