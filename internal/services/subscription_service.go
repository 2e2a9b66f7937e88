package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bizledger/internal/caching"
	"bizledger/internal/common"
	"bizledger/internal/metrics"
	"bizledger/internal/models"
	"bizledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RenewalMode decides where a new paid period starts when the business is
// already subscribed.
type RenewalMode string

const (
	// RenewalResetFromNow restarts the window at activation time.
	RenewalResetFromNow RenewalMode = "reset_from_now"
	// RenewalExtendFromEnd appends the period to an unexpired window.
	RenewalExtendFromEnd RenewalMode = "extend_from_end"
)

// ParseRenewalMode accepts the config spelling of a RenewalMode. Empty means reset.
func ParseRenewalMode(s string) (RenewalMode, error) {
	switch RenewalMode(s) {
	case "", RenewalResetFromNow:
		return RenewalResetFromNow, nil
	case RenewalExtendFromEnd:
		return RenewalExtendFromEnd, nil
	default:
		return "", fmt.Errorf("unknown renewal mode %q", s)
	}
}

// SubscriptionConfig carries the billing periods.
type SubscriptionConfig struct {
	TrialDays   int
	PeriodDays  int
	RenewalMode RenewalMode
}

// SubscriptionService decides whether a business has access and writes
// activation state.
type SubscriptionService interface {
	ResolveAccess(ctx context.Context, businessID uuid.UUID, now time.Time) (*models.AccessStatus, error)
	ActivateSubscription(ctx context.Context, businessID uuid.UUID, method string, paymentID *uuid.UUID) (*models.SubscriptionWindow, error)
	Deactivate(ctx context.Context, businessID uuid.UUID, endNow bool) error
	ExpireLapsed(ctx context.Context) (int, error)
}

type subscriptionService struct {
	businesses repositories.BusinessRepository
	payments   repositories.SubscriptionPaymentRepository
	uow        repositories.UnitOfWork
	cache      caching.AccessCache
	cfg        SubscriptionConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService instance
func NewSubscriptionService(
	businesses repositories.BusinessRepository,
	payments repositories.SubscriptionPaymentRepository,
	uow repositories.UnitOfWork,
	cache caching.AccessCache,
	cfg SubscriptionConfig,
	logger *zap.Logger,
) SubscriptionService {
	if cache == nil {
		cache = caching.NoopAccessCache{}
	}
	return &subscriptionService{
		businesses: businesses,
		payments:   payments,
		uow:        uow,
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// ResolveAccess bootstraps the trial on first sight, writes back a lapsed
// subscription and reports the access state at now.
func (s *subscriptionService) ResolveAccess(ctx context.Context, businessID uuid.UUID, now time.Time) (*models.AccessStatus, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("business")
		}
		return nil, common.NewTransientError("load business", err)
	}

	if business.TrialEnd == nil {
		trialEnd, err := s.businesses.EnsureTrialEnd(ctx, businessID, now.AddDate(0, 0, s.cfg.TrialDays))
		if err != nil {
			return nil, common.NewTransientError("start trial", err)
		}
		business.TrialEnd = &trialEnd
		s.logger.Info("trial started", zap.String("business_id", businessID.String()), zap.Time("trial_end", trialEnd))
	}

	end := business.SubscriptionEndDate
	if business.SubscriptionActive && end != nil && end.Before(now) {
		expired, err := s.businesses.ExpireSubscription(ctx, businessID, now)
		if err != nil {
			return nil, common.NewTransientError("expire subscription", err)
		}
		if expired {
			metrics.SubscriptionsExpiredTotal.Inc()
			s.invalidate(ctx, businessID)
			s.logger.Info("subscription expired", zap.String("business_id", businessID.String()))
		}
		return &models.AccessStatus{Expired: true, EndDate: end}, nil
	}

	if business.SubscriptionActive {
		status := &models.AccessStatus{Active: true, EndDate: end}
		if end != nil {
			status.DaysRemaining = daysUntil(*end, now)
		}
		return status, nil
	}

	// A trial is consumed once any paid period has started.
	if business.SubscriptionStartDate == nil && business.TrialEnd.After(now) {
		return &models.AccessStatus{
			Active:        true,
			IsTrial:       true,
			DaysRemaining: daysUntil(*business.TrialEnd, now),
			EndDate:       business.TrialEnd,
		}, nil
	}

	if end == nil {
		end = business.TrialEnd
	}
	return &models.AccessStatus{Expired: true, EndDate: end}, nil
}

// ActivateSubscription opens a paid period. With a paymentID the claim is
// marked approved and activated in the same transaction.
func (s *subscriptionService) ActivateSubscription(ctx context.Context, businessID uuid.UUID, method string, paymentID *uuid.UUID) (*models.SubscriptionWindow, error) {
	now := s.now()
	extend := s.cfg.RenewalMode == RenewalExtendFromEnd

	var window *models.SubscriptionWindow
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		w, err := s.businesses.Activate(ctx, businessID, now, s.cfg.PeriodDays, extend)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewNotFoundError("business")
			}
			return common.NewTransientError("activate subscription", err)
		}
		if paymentID != nil {
			if err := s.payments.MarkActivated(ctx, *paymentID); err != nil {
				return common.NewTransientError("mark payment activated", err)
			}
		}
		window = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SubscriptionActivationsTotal.WithLabelValues(method).Inc()
	s.invalidate(ctx, businessID)
	s.logger.Info("subscription activated",
		zap.String("business_id", businessID.String()),
		zap.String("method", method),
		zap.Time("end_date", window.EndDate),
	)
	return window, nil
}

// Deactivate turns the subscription off; endNow also closes the window at the current time.
func (s *subscriptionService) Deactivate(ctx context.Context, businessID uuid.UUID, endNow bool) error {
	var endAt *time.Time
	if endNow {
		now := s.now()
		endAt = &now
	}

	ok, err := s.businesses.Deactivate(ctx, businessID, endAt)
	if err != nil {
		return common.NewTransientError("deactivate subscription", err)
	}
	if !ok {
		return common.NewNotFoundError("business")
	}

	s.invalidate(ctx, businessID)
	s.logger.Info("subscription deactivated", zap.String("business_id", businessID.String()), zap.Bool("end_now", endNow))
	return nil
}

// ExpireLapsed flips every subscription past its end date to inactive.
func (s *subscriptionService) ExpireLapsed(ctx context.Context) (int, error) {
	ids, err := s.businesses.ExpireLapsed(ctx, s.now())
	if err != nil {
		return 0, common.NewTransientError("expire lapsed subscriptions", err)
	}
	if len(ids) > 0 {
		metrics.SubscriptionsExpiredTotal.Add(float64(len(ids)))
		s.invalidate(ctx, ids...)
	}
	return len(ids), nil
}

// invalidate drops cached decisions; a cache failure only costs staleness up to the TTL.
func (s *subscriptionService) invalidate(ctx context.Context, businessIDs ...uuid.UUID) {
	if err := s.cache.InvalidateAccess(ctx, businessIDs...); err != nil {
		s.logger.Warn("access cache invalidation failed", zap.Int("businesses", len(businessIDs)), zap.Error(err))
	}
}

// daysUntil rounds up to whole days and never goes below zero.
func daysUntil(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(24*time.Hour)))
}
