package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DebtStatusPending = "pending"
	DebtStatusPartial = "partial"
	DebtStatusPaid    = "paid"
)

type Debt struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	BusinessID    uuid.UUID  `json:"businessId" db:"business_id"`
	CustomerID    *uuid.UUID `json:"customerId" db:"customer_id"`
	Amount        float64    `json:"amount" db:"amount"`
	PaymentAmount float64    `json:"paymentAmount" db:"payment_amount"`
	Status        string     `json:"status" db:"status"`
	DueDate       *time.Time `json:"dueDate" db:"due_date"`
	Description   *string    `json:"description" db:"description"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

type DebtPayment struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DebtID      uuid.UUID `json:"debtId" db:"debt_id"`
	BusinessID  uuid.UUID `json:"businessId" db:"business_id"`
	Amount      float64   `json:"amount" db:"amount"`
	PaymentDate time.Time `json:"paymentDate" db:"payment_date"`
	Notes       *string   `json:"notes" db:"notes"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// DebtPatch lists the mutable columns of a debt. Nil fields are left unchanged.
type DebtPatch struct {
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
}

// DebtSummary aggregates a business's ledger.
type DebtSummary struct {
	TotalDebts       int     `json:"totalDebts"`
	TotalAmount      float64 `json:"totalAmount"`
	TotalPaid        float64 `json:"totalPaid"`
	TotalOutstanding float64 `json:"totalOutstanding"`
	PendingCount     int     `json:"pendingCount"`
	PartialCount     int     `json:"partialCount"`
	PaidCount        int     `json:"paidCount"`
}

// CustomerDebt is one customer's slice of the ledger.
type CustomerDebt struct {
	CustomerID       uuid.UUID `json:"customerId"`
	Debts            []*Debt   `json:"debts"`
	TotalAmount      float64   `json:"totalAmount"`
	TotalPaid        float64   `json:"totalPaid"`
	TotalOutstanding float64   `json:"totalOutstanding"`
}
