package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"bizledger/internal/common"
	"bizledger/internal/metrics"
	"bizledger/internal/models"
	"bizledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Check names reported back to the client.
const (
	CheckTransactionIDFormat = "transactionIdFormat"
	CheckSenderNumberFormat  = "senderNumberFormat"
	CheckAmountSufficient    = "amountSufficient"
	CheckNotDuplicate        = "notDuplicate"
)

var (
	transactionIDPattern = regexp.MustCompile(`^\d{10,15}$`)
	senderNumberPattern  = regexp.MustCompile(`^(\+232|0)\d{8,9}$`)
)

const autoVerifiedNote = "Auto-verified: all checks passed"

// PaymentClaim is a mobile-money payment reported by a tenant.
type PaymentClaim struct {
	TransactionID string  `json:"transactionId"`
	SenderNumber  string  `json:"senderNumber"`
	Amount        float64 `json:"amount"`
}

// VerificationResult is returned for an auto-approved claim.
type VerificationResult struct {
	Verified     bool                        `json:"verified"`
	Payment      *models.SubscriptionPayment `json:"payment"`
	Subscription *models.SubscriptionWindow  `json:"subscription"`
	Checks       map[string]bool             `json:"checks"`
}

// ReviewInput is a manual decision on a claim. A non-nil BusinessScope limits
// the reviewer to that tenant's claims.
type ReviewInput struct {
	PaymentID     uuid.UUID
	Approved      bool
	Notes         string
	ReviewerID    uuid.UUID
	BusinessScope *uuid.UUID
}

type ReviewResult struct {
	Payment      *models.SubscriptionPayment
	Subscription *models.SubscriptionWindow
}

// PaymentVerifier validates mobile-money claims and activates subscriptions
// for the ones that pass.
type PaymentVerifier interface {
	Submit(ctx context.Context, businessID uuid.UUID, claim PaymentClaim) (*VerificationResult, error)
	Review(ctx context.Context, in ReviewInput) (*ReviewResult, error)
	ListPayments(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*models.SubscriptionPayment, error)
}

type paymentVerifier struct {
	payments      repositories.SubscriptionPaymentRepository
	subscriptions SubscriptionService
	uow           repositories.UnitOfWork
	minimumPrice  decimal.Decimal
	logger        *zap.Logger
}

func NewPaymentVerifier(
	payments repositories.SubscriptionPaymentRepository,
	subscriptions SubscriptionService,
	uow repositories.UnitOfWork,
	minimumPrice decimal.Decimal,
	logger *zap.Logger,
) PaymentVerifier {
	return &paymentVerifier{
		payments:      payments,
		subscriptions: subscriptions,
		uow:           uow,
		minimumPrice:  minimumPrice,
		logger:        logger,
	}
}

// Submit records the claim and auto-approves it when every check holds.
// A failed claim is stored as rejected and returned as a validation error
// carrying the check map.
func (v *paymentVerifier) Submit(ctx context.Context, businessID uuid.UUID, claim PaymentClaim) (*VerificationResult, error) {
	transactionID := strings.TrimSpace(claim.TransactionID)
	senderNumber := strings.Join(strings.Fields(claim.SenderNumber), "")
	if transactionID == "" || senderNumber == "" || claim.Amount == 0 {
		return nil, common.NewValidationError("transactionId, senderNumber and amount are required")
	}

	amount := decimal.NewFromFloat(claim.Amount)
	checks := map[string]bool{
		CheckTransactionIDFormat: transactionIDPattern.MatchString(transactionID),
		CheckSenderNumberFormat:  senderNumberPattern.MatchString(senderNumber),
		CheckAmountSufficient:    amount.GreaterThanOrEqual(v.minimumPrice),
		CheckNotDuplicate:        true,
	}

	payment := &models.SubscriptionPayment{
		BusinessID:    businessID,
		PaymentMethod: models.PaymentMethodOrangeMoney,
		TransactionID: transactionID,
		SenderNumber:  senderNumber,
		Amount:        claim.Amount,
	}

	var window *models.SubscriptionWindow
	err := v.uow.Do(ctx, func(ctx context.Context) error {
		spent, err := v.payments.HasApproved(ctx, transactionID)
		if err != nil {
			return common.NewTransientError("check transaction id", err)
		}
		if !spent {
			// The unique transaction id settles races the pre-check cannot see.
			stored, err := v.payments.Upsert(ctx, payment)
			if err != nil {
				return common.NewTransientError("record payment claim", err)
			}
			spent = !stored
		}
		if spent {
			checks[CheckNotDuplicate] = false
			return nil
		}

		if !allPassed(checks) {
			reason := v.rejectionReason(checks, amount)
			if _, err := v.payments.MarkRejected(ctx, payment.ID, &reason, nil); err != nil {
				return common.NewTransientError("reject payment claim", err)
			}
			payment.Status = models.PaymentStatusRejected
			payment.VerificationNotes = &reason
			return nil
		}

		note := autoVerifiedNote
		approved, err := v.payments.MarkApproved(ctx, payment.ID, &note, nil)
		if err != nil {
			return common.NewTransientError("approve payment claim", err)
		}
		if !approved {
			checks[CheckNotDuplicate] = false
			return nil
		}

		window, err = v.subscriptions.ActivateSubscription(ctx, businessID, models.PaymentMethodOrangeMoney, &payment.ID)
		if err != nil {
			return err
		}
		payment.Status = models.PaymentStatusApproved
		payment.VerificationNotes = &note
		payment.SubscriptionActivated = true
		return nil
	})
	if err != nil {
		metrics.PaymentClaimsTotal.WithLabelValues(models.PaymentMethodOrangeMoney, "error").Inc()
		return nil, err
	}

	if !allPassed(checks) {
		reason := v.rejectionReason(checks, amount)
		metrics.PaymentClaimsTotal.WithLabelValues(models.PaymentMethodOrangeMoney, "rejected").Inc()
		v.logger.Info("payment claim rejected",
			zap.String("business_id", businessID.String()),
			zap.String("transaction_id", transactionID),
			zap.String("reason", reason),
		)
		return nil, &common.AppError{
			Kind:    common.KindValidation,
			Message: "Payment verification failed",
			Details: reason,
			Checks:  checks,
		}
	}

	metrics.PaymentClaimsTotal.WithLabelValues(models.PaymentMethodOrangeMoney, "approved").Inc()
	v.logger.Info("payment claim approved",
		zap.String("business_id", businessID.String()),
		zap.String("payment_id", payment.ID.String()),
	)
	return &VerificationResult{Verified: true, Payment: payment, Subscription: window, Checks: checks}, nil
}

// Review applies an admin decision. Approved claims are final.
func (v *paymentVerifier) Review(ctx context.Context, in ReviewInput) (*ReviewResult, error) {
	result := &ReviewResult{}
	var notes *string
	if strings.TrimSpace(in.Notes) != "" {
		n := strings.TrimSpace(in.Notes)
		notes = &n
	}

	err := v.uow.Do(ctx, func(ctx context.Context) error {
		payment, err := v.payments.GetByID(ctx, in.PaymentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewNotFoundError("payment")
			}
			return common.NewTransientError("load payment", err)
		}
		if in.BusinessScope != nil && payment.BusinessID != *in.BusinessScope {
			return common.NewNotFoundError("payment")
		}
		if payment.Status == models.PaymentStatusApproved {
			return common.NewConflictError("Payment has already been approved")
		}

		reviewer := in.ReviewerID
		if !in.Approved {
			changed, err := v.payments.MarkRejected(ctx, payment.ID, notes, &reviewer)
			if err != nil {
				return common.NewTransientError("reject payment", err)
			}
			if !changed {
				return common.NewConflictError("Payment has already been approved")
			}
			payment.Status = models.PaymentStatusRejected
			payment.VerificationNotes = notes
			payment.VerifiedBy = &reviewer
			result.Payment = payment
			return nil
		}

		changed, err := v.payments.MarkApproved(ctx, payment.ID, notes, &reviewer)
		if err != nil {
			return common.NewTransientError("approve payment", err)
		}
		if !changed {
			return common.NewConflictError("Payment has already been approved")
		}

		window, err := v.subscriptions.ActivateSubscription(ctx, payment.BusinessID, models.PaymentMethodManual, &payment.ID)
		if err != nil {
			return err
		}
		payment.Status = models.PaymentStatusApproved
		payment.VerificationNotes = notes
		payment.VerifiedBy = &reviewer
		payment.SubscriptionActivated = true
		result.Payment = payment
		result.Subscription = window
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("payment claim reviewed",
		zap.String("payment_id", in.PaymentID.String()),
		zap.String("reviewer_id", in.ReviewerID.String()),
		zap.Bool("approved", in.Approved),
	)
	return result, nil
}

func (v *paymentVerifier) ListPayments(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*models.SubscriptionPayment, error) {
	payments, err := v.payments.ListByBusiness(ctx, businessID, limit, offset)
	if err != nil {
		return nil, common.NewTransientError("list payments", err)
	}
	return payments, nil
}

// rejectionReason lists every failed check in a fixed order.
func (v *paymentVerifier) rejectionReason(checks map[string]bool, amount decimal.Decimal) string {
	var reasons []string
	if !checks[CheckTransactionIDFormat] {
		reasons = append(reasons, "Invalid transaction ID format (expected 10-15 digits)")
	}
	if !checks[CheckSenderNumberFormat] {
		reasons = append(reasons, "Invalid sender number format")
	}
	if !checks[CheckAmountSufficient] {
		reasons = append(reasons, fmt.Sprintf("Amount %s is below the subscription price %s", amount.String(), v.minimumPrice.String()))
	}
	if !checks[CheckNotDuplicate] {
		reasons = append(reasons, "Transaction ID has already been used")
	}
	return strings.Join(reasons, "; ")
}

func allPassed(checks map[string]bool) bool {
	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}
