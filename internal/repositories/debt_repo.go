package repositories

import (
	"context"

	"bizledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type DebtRepository interface {
	Create(ctx context.Context, debt *models.Debt) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Debt, error)
	ApplyPayment(ctx context.Context, businessID, id uuid.UUID, amount float64) (*models.Debt, error)
	InsertPayment(ctx context.Context, payment *models.DebtPayment) error
	Update(ctx context.Context, businessID, id uuid.UUID, patch models.DebtPatch) (*models.Debt, error)
	List(ctx context.Context, businessID uuid.UUID, status *string, limit, offset int) ([]*models.Debt, error)
	ListByCustomer(ctx context.Context, businessID, customerID uuid.UUID) ([]*models.Debt, error)
	ListPayments(ctx context.Context, businessID, debtID uuid.UUID) ([]*models.DebtPayment, error)
	Summary(ctx context.Context, businessID uuid.UUID) (*models.DebtSummary, error)
}

const debtColumns = `id, business_id, customer_id, amount, payment_amount, status, due_date, description, created_at, updated_at`

const (
	createDebtQuery = `
		INSERT INTO debts (id, business_id, customer_id, amount, payment_amount, status, due_date, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	getDebtByIDQuery = `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE business_id = $1 AND id = $2
	`
	// Increment and status are computed from the locked row in one statement,
	// so concurrent payments on the same debt cannot lose an update.
	applyDebtPaymentQuery = `
		UPDATE debts
		SET payment_amount = payment_amount + $3,
			status = CASE WHEN amount - (payment_amount + $3) <= 0 THEN 'paid' ELSE 'partial' END,
			updated_at = NOW()
		WHERE business_id = $1 AND id = $2
		RETURNING ` + debtColumns + `
	`
	insertDebtPaymentQuery = `
		INSERT INTO debt_payments (id, debt_id, business_id, amount, payment_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	updateDebtQuery = `
		UPDATE debts
		SET description = COALESCE($3, description),
			due_date = COALESCE($4, due_date),
			updated_at = NOW()
		WHERE business_id = $1 AND id = $2
		RETURNING ` + debtColumns + `
	`
	listDebtsQuery = `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE business_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	listDebtsByCustomerQuery = `
		SELECT ` + debtColumns + `
		FROM debts
		WHERE business_id = $1 AND customer_id = $2
		ORDER BY created_at DESC
	`
	listDebtPaymentsQuery = `
		SELECT id, debt_id, business_id, amount, payment_date, notes, created_at
		FROM debt_payments
		WHERE business_id = $1 AND debt_id = $2
		ORDER BY payment_date DESC, created_at DESC
	`
	debtSummaryQuery = `
		SELECT COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(payment_amount), 0),
			COALESCE(SUM(GREATEST(amount - payment_amount, 0)), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'partial'),
			COUNT(*) FILTER (WHERE status = 'paid')
		FROM debts
		WHERE business_id = $1
	`
)

type debtRepo struct {
	db DBTX
}

func NewDebtRepo(db DBTX) DebtRepository {
	return &debtRepo{db: db}
}

func scanDebt(row pgx.Row) (*models.Debt, error) {
	d := &models.Debt{}
	err := row.Scan(&d.ID, &d.BusinessID, &d.CustomerID, &d.Amount, &d.PaymentAmount, &d.Status, &d.DueDate, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func collectDebts(rows pgx.Rows) ([]*models.Debt, error) {
	defer rows.Close()

	debts := []*models.Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func (r *debtRepo) Create(ctx context.Context, debt *models.Debt) error {
	if debt.ID == uuid.Nil {
		debt.ID = uuid.New()
	}
	return conn(ctx, r.db).QueryRow(ctx, createDebtQuery,
		debt.ID, debt.BusinessID, debt.CustomerID, debt.Amount, debt.Status, debt.DueDate, debt.Description,
	).Scan(&debt.CreatedAt, &debt.UpdatedAt)
}

func (r *debtRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Debt, error) {
	return scanDebt(conn(ctx, r.db).QueryRow(ctx, getDebtByIDQuery, businessID, id))
}

// ApplyPayment adds amount to the debt's cumulative payment and returns the updated row.
func (r *debtRepo) ApplyPayment(ctx context.Context, businessID, id uuid.UUID, amount float64) (*models.Debt, error) {
	return scanDebt(conn(ctx, r.db).QueryRow(ctx, applyDebtPaymentQuery, businessID, id, amount))
}

func (r *debtRepo) InsertPayment(ctx context.Context, payment *models.DebtPayment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return conn(ctx, r.db).QueryRow(ctx, insertDebtPaymentQuery,
		payment.ID, payment.DebtID, payment.BusinessID, payment.Amount, payment.PaymentDate, payment.Notes,
	).Scan(&payment.CreatedAt)
}

func (r *debtRepo) Update(ctx context.Context, businessID, id uuid.UUID, patch models.DebtPatch) (*models.Debt, error) {
	return scanDebt(conn(ctx, r.db).QueryRow(ctx, updateDebtQuery, businessID, id, patch.Description, patch.DueDate))
}

func (r *debtRepo) List(ctx context.Context, businessID uuid.UUID, status *string, limit, offset int) ([]*models.Debt, error) {
	rows, err := conn(ctx, r.db).Query(ctx, listDebtsQuery, businessID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDebts(rows)
}

func (r *debtRepo) ListByCustomer(ctx context.Context, businessID, customerID uuid.UUID) ([]*models.Debt, error) {
	rows, err := conn(ctx, r.db).Query(ctx, listDebtsByCustomerQuery, businessID, customerID)
	if err != nil {
		return nil, err
	}
	return collectDebts(rows)
}

func (r *debtRepo) ListPayments(ctx context.Context, businessID, debtID uuid.UUID) ([]*models.DebtPayment, error) {
	rows, err := conn(ctx, r.db).Query(ctx, listDebtPaymentsQuery, businessID, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []*models.DebtPayment{}
	for rows.Next() {
		p := &models.DebtPayment{}
		if err := rows.Scan(&p.ID, &p.DebtID, &p.BusinessID, &p.Amount, &p.PaymentDate, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *debtRepo) Summary(ctx context.Context, businessID uuid.UUID) (*models.DebtSummary, error) {
	s := &models.DebtSummary{}
	err := conn(ctx, r.db).QueryRow(ctx, debtSummaryQuery, businessID).
		Scan(&s.TotalDebts, &s.TotalAmount, &s.TotalPaid, &s.TotalOutstanding, &s.PendingCount, &s.PartialCount, &s.PaidCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}
