package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizledger/internal/common"
	"bizledger/internal/metrics"
	"bizledger/internal/models"
	"bizledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// errDuplicateDelivery rolls back a claim that lost the unique-key race.
var errDuplicateDelivery = errors.New("duplicate stripe delivery")

// WebhookProcessor applies signed Stripe events at most once per event id.
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type webhookProcessor struct {
	secret        string
	events        repositories.StripeEventRepository
	businesses    repositories.BusinessRepository
	subscriptions SubscriptionService
	uow           repositories.UnitOfWork
	archive       EventArchive
	logger        *zap.Logger
	now           func() time.Time
}

// NewWebhookProcessor creates the card-rail processor. archive may be nil.
func NewWebhookProcessor(
	secret string,
	events repositories.StripeEventRepository,
	businesses repositories.BusinessRepository,
	subscriptions SubscriptionService,
	uow repositories.UnitOfWork,
	archive EventArchive,
	logger *zap.Logger,
) WebhookProcessor {
	return &webhookProcessor{
		secret:        secret,
		events:        events,
		businesses:    businesses,
		subscriptions: subscriptions,
		uow:           uow,
		archive:       archive,
		logger:        logger,
		now:           time.Now,
	}
}

// checkoutSession is the subset of a Stripe checkout.session we read.
type checkoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

type invoice struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	BillingReason string `json:"billing_reason"`
}

type subscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

func (p *webhookProcessor) Handle(ctx context.Context, payload []byte, signature string) error {
	if strings.TrimSpace(p.secret) == "" {
		return common.NewTransientError("verify webhook", errors.New("webhook secret not configured"))
	}
	if strings.TrimSpace(signature) == "" {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return common.NewSignatureError(errors.New("missing stripe-signature header"))
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return common.NewSignatureError(err)
	}
	eventType := string(event.Type)
	receivedAt := p.now()

	outcome := "applied"
	err = p.uow.Do(ctx, func(ctx context.Context) error {
		seen, err := p.events.Exists(ctx, event.ID)
		if err != nil {
			return common.NewTransientError("check stripe event", err)
		}
		if seen {
			outcome = "duplicate"
			return nil
		}

		if err := p.events.Insert(ctx, event.ID, eventType); err != nil {
			if errors.Is(err, repositories.ErrDuplicateEvent) {
				return errDuplicateDelivery
			}
			return common.NewTransientError("claim stripe event", err)
		}

		handled, err := p.dispatch(ctx, &event)
		if err != nil {
			return err
		}
		if !handled {
			outcome = "ignored"
		}
		return nil
	})
	if errors.Is(err, errDuplicateDelivery) {
		outcome, err = "duplicate", nil
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		p.logger.Error("stripe webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", eventType),
			zap.Error(err),
		)
		return err
	}

	metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	p.logger.Info("stripe webhook processed",
		zap.String("event_id", event.ID),
		zap.String("type", eventType),
		zap.String("outcome", outcome),
	)

	if outcome == "applied" && p.archive != nil {
		if err := p.archive.ArchiveEvent(ctx, event.ID, eventType, receivedAt, payload); err != nil {
			p.logger.Warn("stripe event archive failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	return nil
}

// dispatch applies one event inside the claiming transaction. It reports
// false for event types and payloads that carry nothing to apply.
func (p *webhookProcessor) dispatch(ctx context.Context, event *stripelib.Event) (bool, error) {
	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return false, fmt.Errorf("decode checkout.session: %w", err)
		}
		return p.handleCheckoutCompleted(ctx, event.ID, session)

	case "invoice.paid", "invoice.payment_succeeded":
		var inv invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return false, fmt.Errorf("decode invoice: %w", err)
		}
		// The first invoice of a subscription is covered by checkout.session.completed.
		if inv.BillingReason == "subscription_create" {
			return false, nil
		}
		business, err := p.businessForCustomer(ctx, event.ID, inv.Customer)
		if business == nil || err != nil {
			return false, err
		}
		return true, p.activate(ctx, business.ID)

	case "invoice.payment_failed":
		var inv invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return false, fmt.Errorf("decode invoice: %w", err)
		}
		business, err := p.businessForCustomer(ctx, event.ID, inv.Customer)
		if business == nil || err != nil {
			return false, err
		}
		return true, p.subscriptions.Deactivate(ctx, business.ID, false)

	case "customer.subscription.deleted":
		var sub subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return false, fmt.Errorf("decode subscription: %w", err)
		}
		business, err := p.businessForCustomer(ctx, event.ID, sub.Customer)
		if business == nil || err != nil {
			return false, err
		}
		return true, p.subscriptions.Deactivate(ctx, business.ID, true)

	default:
		p.logger.Debug("stripe webhook ignored (unhandled type)",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
		return false, nil
	}
}

func (p *webhookProcessor) handleCheckoutCompleted(ctx context.Context, eventID string, session checkoutSession) (bool, error) {
	if session.PaymentStatus != "paid" {
		p.logger.Info("checkout completed without payment",
			zap.String("event_id", eventID),
			zap.String("payment_status", session.PaymentStatus),
		)
		return false, nil
	}

	ref := strings.TrimSpace(session.ClientReferenceID)
	if ref == "" {
		ref = strings.TrimSpace(session.Metadata["business_id"])
	}
	businessID, err := uuid.Parse(ref)
	if err != nil {
		p.logger.Warn("checkout session without a business reference",
			zap.String("event_id", eventID),
			zap.String("session_id", session.ID),
		)
		return false, nil
	}

	if err := p.activate(ctx, businessID); err != nil {
		if common.IsKind(err, common.KindNotFound) {
			p.logger.Warn("checkout session for unknown business",
				zap.String("event_id", eventID),
				zap.String("business_id", businessID.String()),
			)
			return false, nil
		}
		return false, err
	}

	if customer := strings.TrimSpace(session.Customer); customer != "" {
		if err := p.businesses.SetStripeCustomerID(ctx, businessID, customer); err != nil {
			return false, common.NewTransientError("store stripe customer", err)
		}
	}
	return true, nil
}

// businessForCustomer returns nil without error when no business carries the customer id.
func (p *webhookProcessor) businessForCustomer(ctx context.Context, eventID, customerID string) (*models.Business, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		p.logger.Warn("stripe event without customer", zap.String("event_id", eventID))
		return nil, nil
	}

	business, err := p.businesses.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.logger.Warn("stripe event for unknown customer",
				zap.String("event_id", eventID),
				zap.String("customer_id", customerID),
			)
			return nil, nil
		}
		return nil, common.NewTransientError("find business by stripe customer", err)
	}
	return business, nil
}

func (p *webhookProcessor) activate(ctx context.Context, businessID uuid.UUID) error {
	_, err := p.subscriptions.ActivateSubscription(ctx, businessID, models.PaymentMethodStripe, nil)
	return err
}
