package services

import (
	"context"
	"errors"
	"time"

	"bizledger/internal/common"
	"bizledger/internal/metrics"
	"bizledger/internal/models"
	"bizledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateDebtInput struct {
	CustomerID  *uuid.UUID `json:"customerId"`
	Amount      float64    `json:"amount"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
}

type RecordPaymentInput struct {
	DebtID uuid.UUID `json:"debtId"`
	Amount float64   `json:"amount"`
	Notes  *string   `json:"notes"`
}

// PaymentResult is the ledger state right after a payment.
type PaymentResult struct {
	Debt          *models.Debt        `json:"debt"`
	Payment       *models.DebtPayment `json:"payment"`
	PaymentAmount float64             `json:"paymentAmount"`
	NewBalance    float64             `json:"newBalance"`
	Status        string              `json:"status"`
}

// DebtService maintains debts and their payment trail.
type DebtService interface {
	CreateDebt(ctx context.Context, businessID uuid.UUID, in CreateDebtInput) (*models.Debt, error)
	RecordPayment(ctx context.Context, businessID uuid.UUID, in RecordPaymentInput) (*PaymentResult, error)
	UpdateDebt(ctx context.Context, businessID, debtID uuid.UUID, patch models.DebtPatch) (*models.Debt, error)
	ListDebts(ctx context.Context, businessID uuid.UUID, status *string, limit, offset int) ([]*models.Debt, error)
	GetCustomerDebt(ctx context.Context, businessID, customerID uuid.UUID) (*models.CustomerDebt, error)
	GetSummary(ctx context.Context, businessID uuid.UUID) (*models.DebtSummary, error)
	ListPayments(ctx context.Context, businessID, debtID uuid.UUID) ([]*models.DebtPayment, error)
}

type debtService struct {
	debts     repositories.DebtRepository
	customers repositories.CustomerRepository
	uow       repositories.UnitOfWork
	logger    *zap.Logger
	now       func() time.Time
}

// NewDebtService creates a new DebtService instance
func NewDebtService(
	debts repositories.DebtRepository,
	customers repositories.CustomerRepository,
	uow repositories.UnitOfWork,
	logger *zap.Logger,
) DebtService {
	return &debtService{
		debts:     debts,
		customers: customers,
		uow:       uow,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *debtService) CreateDebt(ctx context.Context, businessID uuid.UUID, in CreateDebtInput) (*models.Debt, error) {
	if in.Amount <= 0 {
		return nil, common.NewValidationError("amount must be greater than 0")
	}

	debt := &models.Debt{
		BusinessID:  businessID,
		CustomerID:  in.CustomerID,
		Amount:      in.Amount,
		Status:      models.DebtStatusPending,
		DueDate:     in.DueDate,
		Description: in.Description,
	}

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		if in.CustomerID != nil {
			if _, err := s.customers.GetByID(ctx, businessID, *in.CustomerID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return common.NewNotFoundError("customer")
				}
				return common.NewTransientError("load customer", err)
			}
		}
		if err := s.debts.Create(ctx, debt); err != nil {
			return common.NewTransientError("create debt", err)
		}
		if in.CustomerID != nil {
			if err := s.customers.AdjustTotalDebt(ctx, businessID, *in.CustomerID, in.Amount); err != nil {
				return common.NewTransientError("update customer debt", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("debt created",
		zap.String("business_id", businessID.String()),
		zap.String("debt_id", debt.ID.String()),
		zap.Float64("amount", debt.Amount),
	)
	return debt, nil
}

// RecordPayment applies the payment, appends it to the trail and lowers the
// customer's running total, all in one transaction. Overpayment is recorded
// and the balance floors at zero.
func (s *debtService) RecordPayment(ctx context.Context, businessID uuid.UUID, in RecordPaymentInput) (*PaymentResult, error) {
	if in.DebtID == uuid.Nil {
		return nil, common.NewValidationError("debtId is required")
	}
	if in.Amount <= 0 {
		return nil, common.NewValidationError("amount must be greater than 0")
	}

	payment := &models.DebtPayment{
		DebtID:      in.DebtID,
		BusinessID:  businessID,
		Amount:      in.Amount,
		PaymentDate: s.now(),
		Notes:       in.Notes,
	}

	var debt *models.Debt
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		updated, err := s.debts.ApplyPayment(ctx, businessID, in.DebtID, in.Amount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewNotFoundError("debt")
			}
			return common.NewTransientError("apply debt payment", err)
		}
		if err := s.debts.InsertPayment(ctx, payment); err != nil {
			return common.NewTransientError("record debt payment", err)
		}
		if updated.CustomerID != nil {
			if err := s.customers.AdjustTotalDebt(ctx, businessID, *updated.CustomerID, -in.Amount); err != nil {
				return common.NewTransientError("update customer debt", err)
			}
		}
		debt = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	balance := outstanding(debt)
	metrics.DebtPaymentsTotal.WithLabelValues(debt.Status).Inc()
	s.logger.Info("debt payment recorded",
		zap.String("business_id", businessID.String()),
		zap.String("debt_id", debt.ID.String()),
		zap.Float64("amount", in.Amount),
		zap.String("status", debt.Status),
	)
	return &PaymentResult{
		Debt:          debt,
		Payment:       payment,
		PaymentAmount: debt.PaymentAmount,
		NewBalance:    balance.InexactFloat64(),
		Status:        debt.Status,
	}, nil
}

func (s *debtService) UpdateDebt(ctx context.Context, businessID, debtID uuid.UUID, patch models.DebtPatch) (*models.Debt, error) {
	if patch.Description == nil && patch.DueDate == nil {
		return nil, common.NewValidationError("no fields to update")
	}

	debt, err := s.debts.Update(ctx, businessID, debtID, patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("debt")
		}
		return nil, common.NewTransientError("update debt", err)
	}
	return debt, nil
}

func (s *debtService) ListDebts(ctx context.Context, businessID uuid.UUID, status *string, limit, offset int) ([]*models.Debt, error) {
	if status != nil {
		switch *status {
		case models.DebtStatusPending, models.DebtStatusPartial, models.DebtStatusPaid:
		default:
			return nil, common.NewValidationError("status must be one of pending, partial, paid")
		}
	}

	debts, err := s.debts.List(ctx, businessID, status, limit, offset)
	if err != nil {
		return nil, common.NewTransientError("list debts", err)
	}
	return debts, nil
}

func (s *debtService) GetCustomerDebt(ctx context.Context, businessID, customerID uuid.UUID) (*models.CustomerDebt, error) {
	if _, err := s.customers.GetByID(ctx, businessID, customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("customer")
		}
		return nil, common.NewTransientError("load customer", err)
	}

	debts, err := s.debts.ListByCustomer(ctx, businessID, customerID)
	if err != nil {
		return nil, common.NewTransientError("list customer debts", err)
	}

	total, paid, owed := decimal.Zero, decimal.Zero, decimal.Zero
	for _, d := range debts {
		total = total.Add(decimal.NewFromFloat(d.Amount))
		paid = paid.Add(decimal.NewFromFloat(d.PaymentAmount))
		owed = owed.Add(outstanding(d))
	}

	return &models.CustomerDebt{
		CustomerID:       customerID,
		Debts:            debts,
		TotalAmount:      total.InexactFloat64(),
		TotalPaid:        paid.InexactFloat64(),
		TotalOutstanding: owed.InexactFloat64(),
	}, nil
}

func (s *debtService) GetSummary(ctx context.Context, businessID uuid.UUID) (*models.DebtSummary, error) {
	summary, err := s.debts.Summary(ctx, businessID)
	if err != nil {
		return nil, common.NewTransientError("summarize debts", err)
	}
	return summary, nil
}

func (s *debtService) ListPayments(ctx context.Context, businessID, debtID uuid.UUID) ([]*models.DebtPayment, error) {
	if _, err := s.debts.GetByID(ctx, businessID, debtID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("debt")
		}
		return nil, common.NewTransientError("load debt", err)
	}

	payments, err := s.debts.ListPayments(ctx, businessID, debtID)
	if err != nil {
		return nil, common.NewTransientError("list debt payments", err)
	}
	return payments, nil
}

// outstanding is max(0, amount - paid).
func outstanding(d *models.Debt) decimal.Decimal {
	balance := decimal.NewFromFloat(d.Amount).Sub(decimal.NewFromFloat(d.PaymentAmount))
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
