package repositories

import (
	"context"
	"errors"
)

// ErrDuplicateEvent is returned when another delivery already claimed the event id.
var ErrDuplicateEvent = errors.New("stripe event already processed")

type StripeEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	Insert(ctx context.Context, eventID, eventType string) error
}

const (
	stripeEventExistsQuery = `SELECT EXISTS (SELECT 1 FROM stripe_events WHERE event_id = $1)`
	insertStripeEventQuery = `
		INSERT INTO stripe_events (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
	`
)

type stripeEventRepo struct {
	db DBTX
}

func NewStripeEventRepo(db DBTX) StripeEventRepository {
	return &stripeEventRepo{db: db}
}

func (r *stripeEventRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, stripeEventExistsQuery, eventID).Scan(&exists)
	return exists, err
}

func (r *stripeEventRepo) Insert(ctx context.Context, eventID, eventType string) error {
	_, err := conn(ctx, r.db).Exec(ctx, insertStripeEventQuery, eventID, eventType)
	if isUniqueViolation(err) {
		return ErrDuplicateEvent
	}
	return err
}
