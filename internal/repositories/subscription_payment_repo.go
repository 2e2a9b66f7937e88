package repositories

import (
	"context"
	"errors"

	"bizledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SubscriptionPaymentRepository interface {
	Upsert(ctx context.Context, payment *models.SubscriptionPayment) (bool, error)
	HasApproved(ctx context.Context, transactionID string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPayment, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*models.SubscriptionPayment, error)
	MarkApproved(ctx context.Context, id uuid.UUID, notes *string, verifiedBy *uuid.UUID) (bool, error)
	MarkRejected(ctx context.Context, id uuid.UUID, notes *string, verifiedBy *uuid.UUID) (bool, error)
	MarkActivated(ctx context.Context, id uuid.UUID) error
}

const paymentColumns = `id, business_id, payment_method, transaction_id, sender_number, amount, status, verification_notes, verified_by, verified_at, subscription_activated, created_at, updated_at`

const (
	// An approved row is never refreshed, so an empty result means the id is spent.
	upsertPaymentQuery = `
		INSERT INTO subscription_payments (id, business_id, payment_method, transaction_id, sender_number, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', NOW(), NOW())
		ON CONFLICT (transaction_id) DO UPDATE
		SET business_id = EXCLUDED.business_id,
			sender_number = EXCLUDED.sender_number,
			amount = EXCLUDED.amount,
			status = 'pending',
			updated_at = NOW()
		WHERE subscription_payments.status <> 'approved'
		RETURNING id, status, created_at, updated_at
	`
	hasApprovedPaymentQuery = `
		SELECT EXISTS (
			SELECT 1 FROM subscription_payments
			WHERE transaction_id = $1 AND status = 'approved'
		)
	`
	getPaymentByIDQuery = `
		SELECT ` + paymentColumns + `
		FROM subscription_payments
		WHERE id = $1
	`
	listPaymentsByBusinessQuery = `
		SELECT ` + paymentColumns + `
		FROM subscription_payments
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	markPaymentApprovedQuery = `
		UPDATE subscription_payments
		SET status = 'approved', verification_notes = $2, verified_by = $3, verified_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'approved'
	`
	markPaymentRejectedQuery = `
		UPDATE subscription_payments
		SET status = 'rejected', verification_notes = $2, verified_by = $3, verified_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'approved'
	`
	markPaymentActivatedQuery = `
		UPDATE subscription_payments
		SET status = 'approved', subscription_activated = TRUE, updated_at = NOW()
		WHERE id = $1
	`
)

type subscriptionPaymentRepo struct {
	db DBTX
}

func NewSubscriptionPaymentRepo(db DBTX) SubscriptionPaymentRepository {
	return &subscriptionPaymentRepo{db: db}
}

// Upsert inserts the claim or refreshes a non-approved claim with the same
// transaction id back to pending. It reports false when the id is already approved.
func (r *subscriptionPaymentRepo) Upsert(ctx context.Context, payment *models.SubscriptionPayment) (bool, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}

	err := conn(ctx, r.db).QueryRow(ctx, upsertPaymentQuery,
		payment.ID, payment.BusinessID, payment.PaymentMethod, payment.TransactionID, payment.SenderNumber, payment.Amount,
	).Scan(&payment.ID, &payment.Status, &payment.CreatedAt, &payment.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *subscriptionPaymentRepo) HasApproved(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, hasApprovedPaymentQuery, transactionID).Scan(&exists)
	return exists, err
}

func scanPayment(row pgx.Row) (*models.SubscriptionPayment, error) {
	p := &models.SubscriptionPayment{}
	err := row.Scan(&p.ID, &p.BusinessID, &p.PaymentMethod, &p.TransactionID, &p.SenderNumber, &p.Amount, &p.Status,
		&p.VerificationNotes, &p.VerifiedBy, &p.VerifiedAt, &p.SubscriptionActivated, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *subscriptionPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPayment, error) {
	return scanPayment(conn(ctx, r.db).QueryRow(ctx, getPaymentByIDQuery, id))
}

func (r *subscriptionPaymentRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit, offset int) ([]*models.SubscriptionPayment, error) {
	rows, err := conn(ctx, r.db).Query(ctx, listPaymentsByBusinessQuery, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []*models.SubscriptionPayment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *subscriptionPaymentRepo) MarkApproved(ctx context.Context, id uuid.UUID, notes *string, verifiedBy *uuid.UUID) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, markPaymentApprovedQuery, id, notes, verifiedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionPaymentRepo) MarkRejected(ctx context.Context, id uuid.UUID, notes *string, verifiedBy *uuid.UUID) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, markPaymentRejectedQuery, id, notes, verifiedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *subscriptionPaymentRepo) MarkActivated(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.db).Exec(ctx, markPaymentActivatedQuery, id)
	return err
}
