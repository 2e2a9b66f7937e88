package models

import (
	"time"

	"github.com/google/uuid"
)

// Business is the tenant row. Trial and subscription state live here.
type Business struct {
	ID                    uuid.UUID  `json:"id" db:"id"`
	Name                  string     `json:"name" db:"name"`
	TrialEnd              *time.Time `json:"trialEnd" db:"trial_end"`
	SubscriptionActive    bool       `json:"subscriptionActive" db:"subscription_active"`
	SubscriptionStartDate *time.Time `json:"subscriptionStartDate" db:"subscription_start_date"`
	SubscriptionEndDate   *time.Time `json:"subscriptionEndDate" db:"subscription_end_date"`
	StripeCustomerID      *string    `json:"stripeCustomerId,omitempty" db:"stripe_customer_id"`
	CreatedAt             time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time  `json:"updatedAt" db:"updated_at"`
}

// SubscriptionWindow is the paid period written by an activation.
type SubscriptionWindow struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// AccessStatus is the outcome of resolving a business's access at an instant.
type AccessStatus struct {
	Active        bool       `json:"active"`
	IsTrial       bool       `json:"isTrial"`
	Expired       bool       `json:"expired"`
	DaysRemaining int        `json:"daysRemaining"`
	EndDate       *time.Time `json:"endDate"`
}
