package models

import "time"

// StripeEvent is the dedup log for card-rail webhooks. A row means the event was applied.
type StripeEvent struct {
	EventID     string    `json:"eventId" db:"event_id"`
	EventType   string    `json:"eventType" db:"event_type"`
	ProcessedAt time.Time `json:"processedAt" db:"processed_at"`
}
