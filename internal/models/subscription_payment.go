package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

const (
	PaymentMethodOrangeMoney = "orange_money"
	PaymentMethodStripe      = "stripe"
	PaymentMethodManual      = "manual"
)

// SubscriptionPayment is a mobile-money claim. TransactionID is globally unique.
type SubscriptionPayment struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	BusinessID            uuid.UUID  `json:"businessId" db:"business_id"`
	PaymentMethod         string     `json:"paymentMethod" db:"payment_method"`
	TransactionID         string     `json:"transactionId" db:"transaction_id"`
	SenderNumber          string     `json:"senderNumber" db:"sender_number"`
	Amount                float64    `json:"amount" db:"amount"`
	Status                string     `json:"status" db:"status"`
	VerificationNotes     *string    `json:"verificationNotes" db:"verification_notes"`
	VerifiedBy            *uuid.UUID `json:"verifiedBy" db:"verified_by"`
	VerifiedAt            *time.Time `json:"verifiedAt" db:"verified_at"`
	SubscriptionActivated bool       `json:"subscriptionActivated" db:"subscription_activated"`
	CreatedAt             time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time  `json:"updatedAt" db:"updated_at"`
}
