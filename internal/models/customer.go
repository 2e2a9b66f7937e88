package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer carries only the fields the ledger reads or maintains.
type Customer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BusinessID uuid.UUID `json:"businessId" db:"business_id"`
	Name       string    `json:"name" db:"name"`
	TotalDebt  float64   `json:"totalDebt" db:"total_debt"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}
