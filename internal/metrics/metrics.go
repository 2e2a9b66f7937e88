// Package metrics holds the Prometheus collectors for the billing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bizledger",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})

	PaymentClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bizledger",
		Subsystem: "billing",
		Name:      "payment_claims_total",
		Help:      "Mobile-money payment claims by method and outcome.",
	}, []string{"method", "outcome"})

	SubscriptionActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bizledger",
		Subsystem: "billing",
		Name:      "subscription_activations_total",
		Help:      "Subscription activations by payment method.",
	}, []string{"method"})

	AccessGateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bizledger",
		Subsystem: "billing",
		Name:      "access_gate_decisions_total",
		Help:      "Access gate decisions by outcome.",
	}, []string{"decision"})

	SubscriptionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bizledger",
		Subsystem: "billing",
		Name:      "subscriptions_expired_total",
		Help:      "Subscriptions flipped inactive by the expiry sweep or the access check.",
	})

	DebtPaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bizledger",
		Subsystem: "ledger",
		Name:      "debt_payments_total",
		Help:      "Debt payments recorded by resulting debt status.",
	}, []string{"status"})
)
