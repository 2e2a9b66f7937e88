// Package servicesmock provides testify mocks of the service interfaces for
// handler, middleware and job tests.
package servicesmock

import (
	"context"
	"time"

	"bizledger/internal/models"
	"bizledger/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// SubscriptionService mocks services.SubscriptionService.
type SubscriptionService struct {
	mock.Mock
}

var _ services.SubscriptionService = (*SubscriptionService)(nil)

func (m *SubscriptionService) ResolveAccess(ctx context.Context, businessID uuid.UUID, now time.Time) (*models.AccessStatus, error) {
	args := m.Called(ctx, businessID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessStatus), args.Error(1)
}

func (m *SubscriptionService) ActivateSubscription(ctx context.Context, businessID uuid.UUID, method string, paymentID *uuid.UUID) (*models.SubscriptionWindow, error) {
	args := m.Called(ctx, businessID, method, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionWindow), args.Error(1)
}

func (m *SubscriptionService) Deactivate(ctx context.Context, businessID uuid.UUID, endNow bool) error {
	args := m.Called(ctx, businessID, endNow)
	return args.Error(0)
}

func (m *SubscriptionService) ExpireLapsed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// PaymentVerifier mocks services.PaymentVerifier.
type PaymentVerifier struct {
	mock.Mock
}

var _ services.PaymentVerifier = (*PaymentVerifier)(nil)

func (m *PaymentVerifier) Submit(ctx context.Context, businessID uuid.UUID, claim services.PaymentClaim) (*services.VerificationResult, error) {
	args := m.Called(ctx, businessID, claim)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerificationResult), args.Error(1)
}

func (m *PaymentVerifier) Review(ctx context.Context, in services.ReviewInput) (*services.ReviewResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReviewResult), args.Error(1)
}

func (m *PaymentVerifier) ListPayments(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*models.SubscriptionPayment, error) {
	args := m.Called(ctx, businessID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionPayment), args.Error(1)
}

// WebhookProcessor mocks services.WebhookProcessor.
type WebhookProcessor struct {
	mock.Mock
}

var _ services.WebhookProcessor = (*WebhookProcessor)(nil)

func (m *WebhookProcessor) Handle(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

// DebtService mocks services.DebtService.
type DebtService struct {
	mock.Mock
}

var _ services.DebtService = (*DebtService)(nil)

func (m *DebtService) CreateDebt(ctx context.Context, businessID uuid.UUID, in services.CreateDebtInput) (*models.Debt, error) {
	args := m.Called(ctx, businessID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Debt), args.Error(1)
}

func (m *DebtService) RecordPayment(ctx context.Context, businessID uuid.UUID, in services.RecordPaymentInput) (*services.PaymentResult, error) {
	args := m.Called(ctx, businessID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PaymentResult), args.Error(1)
}

func (m *DebtService) UpdateDebt(ctx context.Context, businessID, debtID uuid.UUID, patch models.DebtPatch) (*models.Debt, error) {
	args := m.Called(ctx, businessID, debtID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Debt), args.Error(1)
}

func (m *DebtService) ListDebts(ctx context.Context, businessID uuid.UUID, status *string, limit, offset int) ([]*models.Debt, error) {
	args := m.Called(ctx, businessID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Debt), args.Error(1)
}

func (m *DebtService) GetCustomerDebt(ctx context.Context, businessID, customerID uuid.UUID) (*models.CustomerDebt, error) {
	args := m.Called(ctx, businessID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CustomerDebt), args.Error(1)
}

func (m *DebtService) GetSummary(ctx context.Context, businessID uuid.UUID) (*models.DebtSummary, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DebtSummary), args.Error(1)
}

func (m *DebtService) ListPayments(ctx context.Context, businessID, debtID uuid.UUID) ([]*models.DebtPayment, error) {
	args := m.Called(ctx, businessID, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DebtPayment), args.Error(1)
}
