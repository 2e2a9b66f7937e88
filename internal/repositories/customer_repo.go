package repositories

import (
	"context"

	"bizledger/internal/models"

	"github.com/google/uuid"
)

type CustomerRepository interface {
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Customer, error)
	AdjustTotalDebt(ctx context.Context, businessID, id uuid.UUID, delta float64) error
}

const (
	getCustomerByIDQuery = `
		SELECT id, business_id, name, total_debt, created_at, updated_at
		FROM customers
		WHERE business_id = $1 AND id = $2
	`
	adjustCustomerDebtQuery = `
		UPDATE customers
		SET total_debt = GREATEST(total_debt + $3, 0), updated_at = NOW()
		WHERE business_id = $1 AND id = $2
	`
)

type customerRepo struct {
	db DBTX
}

func NewCustomerRepo(db DBTX) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*models.Customer, error) {
	customer := &models.Customer{}
	err := conn(ctx, r.db).QueryRow(ctx, getCustomerByIDQuery, businessID, id).
		Scan(&customer.ID, &customer.BusinessID, &customer.Name, &customer.TotalDebt, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// AdjustTotalDebt moves the denormalized total by delta, floored at zero.
// A missing customer row is not an error.
func (r *customerRepo) AdjustTotalDebt(ctx context.Context, businessID, id uuid.UUID, delta float64) error {
	_, err := conn(ctx, r.db).Exec(ctx, adjustCustomerDebtQuery, businessID, id, delta)
	return err
}
