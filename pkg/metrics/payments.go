package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records webhook and payment application outcomes.
type PaymentMetrics struct {
	webhookEvents *prometheus.CounterVec
	applied       *prometheus.CounterVec
	approvals     *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Webhook events received, by provider and outcome.",
	}, []string{"provider", "outcome"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_applied_total",
		Help: "Payments applied exactly once, by provider and type.",
	}, []string{"provider", "type"})
	approvals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_transfer_decisions_total",
		Help: "Bank transfer admin decisions.",
	}, []string{"decision"})
	reg.MustRegister(webhookEvents, applied, approvals)
	return &PaymentMetrics{
		webhookEvents: webhookEvents,
		applied:       applied,
		approvals:     approvals,
	}
}

// IncWebhookEvent counts one webhook event outcome
// (applied, duplicate, ignored, error).
func (m *PaymentMetrics) IncWebhookEvent(provider, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncApplied counts one successful payment application.
func (m *PaymentMetrics) IncApplied(provider, paymentType string) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.WithLabelValues(normalizeLabel(provider), normalizeLabel(paymentType)).Inc()
}

// IncBankTransferDecision counts one admin approve/reject decision.
func (m *PaymentMetrics) IncBankTransferDecision(decision string) {
	if m == nil || m.approvals == nil {
		return
	}
	m.approvals.WithLabelValues(normalizeLabel(decision)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
