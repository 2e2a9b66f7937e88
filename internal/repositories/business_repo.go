package repositories

import (
	"context"
	"errors"
	"time"

	"bizledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BusinessRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Business, error)
	EnsureTrialEnd(ctx context.Context, id uuid.UUID, candidate time.Time) (time.Time, error)
	ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ExpireLapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	Activate(ctx context.Context, id uuid.UUID, now time.Time, periodDays int, extend bool) (*models.SubscriptionWindow, error)
	Deactivate(ctx context.Context, id uuid.UUID, endAt *time.Time) (bool, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

const businessColumns = `id, name, trial_end, subscription_active, subscription_start_date, subscription_end_date, stripe_customer_id, created_at, updated_at`

const (
	getBusinessByIDQuery = `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE id = $1
	`
	getBusinessByStripeCustomerQuery = `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE stripe_customer_id = $1
	`
	// Only the first caller wins; later callers fall through to the read.
	ensureTrialEndQuery = `
		UPDATE businesses
		SET trial_end = $2, updated_at = NOW()
		WHERE id = $1 AND trial_end IS NULL
		RETURNING trial_end
	`
	getTrialEndQuery = `SELECT trial_end FROM businesses WHERE id = $1`
	expireSubscriptionQuery = `
		UPDATE businesses
		SET subscription_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND subscription_active AND subscription_end_date < $2
	`
	expireLapsedQuery = `
		UPDATE businesses
		SET subscription_active = FALSE, updated_at = NOW()
		WHERE subscription_active AND subscription_end_date < $1
		RETURNING id
	`
	activateResetQuery = `
		UPDATE businesses
		SET subscription_active = TRUE,
			subscription_start_date = $2::timestamptz,
			subscription_end_date = $2::timestamptz + make_interval(days => $3::int),
			updated_at = NOW()
		WHERE id = $1
		RETURNING subscription_start_date, subscription_end_date
	`
	activateExtendQuery = `
		UPDATE businesses
		SET subscription_active = TRUE,
			subscription_start_date = CASE
				WHEN subscription_active AND subscription_end_date > $2::timestamptz THEN subscription_start_date
				ELSE $2::timestamptz END,
			subscription_end_date = CASE
				WHEN subscription_active AND subscription_end_date > $2::timestamptz THEN subscription_end_date
				ELSE $2::timestamptz END + make_interval(days => $3::int),
			updated_at = NOW()
		WHERE id = $1
		RETURNING subscription_start_date, subscription_end_date
	`
	deactivateQuery = `
		UPDATE businesses
		SET subscription_active = FALSE,
			subscription_end_date = COALESCE($2, subscription_end_date),
			updated_at = NOW()
		WHERE id = $1
	`
	setStripeCustomerQuery = `
		UPDATE businesses
		SET stripe_customer_id = $2, updated_at = NOW()
		WHERE id = $1
	`
)

type businessRepo struct {
	db DBTX
}

func NewBusinessRepo(db DBTX) BusinessRepository {
	return &businessRepo{db: db}
}

func scanBusiness(row pgx.Row) (*models.Business, error) {
	b := &models.Business{}
	err := row.Scan(&b.ID, &b.Name, &b.TrialEnd, &b.SubscriptionActive, &b.SubscriptionStartDate, &b.SubscriptionEndDate, &b.StripeCustomerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *businessRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	return scanBusiness(conn(ctx, r.db).QueryRow(ctx, getBusinessByIDQuery, id))
}

func (r *businessRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Business, error) {
	return scanBusiness(conn(ctx, r.db).QueryRow(ctx, getBusinessByStripeCustomerQuery, customerID))
}

// EnsureTrialEnd stores candidate as the trial end unless one is already set,
// and returns whichever value is stored.
func (r *businessRepo) EnsureTrialEnd(ctx context.Context, id uuid.UUID, candidate time.Time) (time.Time, error) {
	db := conn(ctx, r.db)

	var trialEnd time.Time
	err := db.QueryRow(ctx, ensureTrialEndQuery, id, candidate).Scan(&trialEnd)
	if err == nil {
		return trialEnd, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, err
	}

	var stored *time.Time
	if err := db.QueryRow(ctx, getTrialEndQuery, id).Scan(&stored); err != nil {
		return time.Time{}, err
	}
	if stored == nil {
		// Row exists but trial_end is still NULL: cannot happen after the conditional update.
		return time.Time{}, errors.New("trial end was not stored")
	}
	return *stored, nil
}

func (r *businessRepo) ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, expireSubscriptionQuery, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *businessRepo) ExpireLapsed(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.db).Query(ctx, expireLapsedQuery, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *businessRepo) Activate(ctx context.Context, id uuid.UUID, now time.Time, periodDays int, extend bool) (*models.SubscriptionWindow, error) {
	query := activateResetQuery
	if extend {
		query = activateExtendQuery
	}

	window := &models.SubscriptionWindow{}
	err := conn(ctx, r.db).QueryRow(ctx, query, id, now, periodDays).Scan(&window.StartDate, &window.EndDate)
	if err != nil {
		return nil, err
	}
	return window, nil
}

// Deactivate turns the subscription off. A non-nil endAt also closes the window.
func (r *businessRepo) Deactivate(ctx context.Context, id uuid.UUID, endAt *time.Time) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, deactivateQuery, id, endAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *businessRepo) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, setStripeCustomerQuery, id, customerID)
	return err
}
