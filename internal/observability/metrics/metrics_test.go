package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

func TestWebhookMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.ObserveEvent("status", "duplicate")
	m.ObserveEvent("status", "duplicate")
	m.ObserveLatency("status", 0.02)

	if got := counterValue(t, reg, "chatcommerce_webhook_events_total", map[string]string{"kind": "status", "outcome": "duplicate"}); got != 2 {
		t.Fatalf("expected 2 duplicates, got %v", got)
	}
}

func TestCommerceMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCommerceMetrics(reg)
	m.ObserveStatusTransition("delivered", "applied")
	m.ObserveGateStop("subscription")
	m.ObserveReply("trigger")
	m.ObserveOrder("created")
	m.ObserveSend("text", nil)
	m.ObserveSend("text", errors.New("boom"))

	if got := counterValue(t, reg, "chatcommerce_outbound_sends_total", map[string]string{"kind": "text", "result": "error"}); got != 1 {
		t.Fatalf("expected 1 failed send, got %v", got)
	}
	if got := counterValue(t, reg, "chatcommerce_gating_stops_total", map[string]string{"gate": "subscription"}); got != 1 {
		t.Fatalf("expected 1 gate stop, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var w *WebhookMetrics
	w.ObserveEvent("message", "handled")
	w.ObserveLatency("message", 0.1)

	var c *CommerceMetrics
	c.ObserveStatusTransition("read", "ignored")
	c.ObserveGateStop("hours")
	c.ObserveReply("fallback")
	c.ObserveOrder("failed")
	c.ObserveSend("template", nil)
}
