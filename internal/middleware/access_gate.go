package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"bizledger/internal/caching"
	"bizledger/internal/common"
	"bizledger/internal/metrics"
	"bizledger/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// FailurePolicy decides what the gate does when access cannot be resolved.
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "open"
	FailClosed FailurePolicy = "closed"
)

// ParseFailurePolicy maps a config value to a policy. Empty means FailOpen.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	default:
		return "", fmt.Errorf("unknown access gate failure policy %q", s)
	}
}

const subscriptionExpiredMessage = "Your subscription has expired. Please renew to continue using the service."

// AccessGate blocks tenants whose trial and subscription have both lapsed.
type AccessGate struct {
	subscriptions services.SubscriptionService
	cache         caching.AccessCache
	policy        FailurePolicy
	logger        *zap.Logger
	now           func() time.Time
}

func NewAccessGate(subscriptions services.SubscriptionService, cache caching.AccessCache, policy FailurePolicy, logger *zap.Logger) *AccessGate {
	if cache == nil {
		cache = caching.NoopAccessCache{}
	}
	return &AccessGate{
		subscriptions: subscriptions,
		cache:         cache,
		policy:        policy,
		logger:        logger,
		now:           time.Now,
	}
}

// Require is the echo middleware. It must run after JWTMiddleware.
func (g *AccessGate) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			businessID, ok := common.GetBusinessIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
			}
			now := g.now()

			cached, err := g.cache.GetAccess(ctx, businessID)
			if err != nil {
				g.logger.Debug("access cache read failed", zap.String("business_id", businessID.String()), zap.Error(err))
			}
			if cached != nil && cached.Active && (cached.EndDate == nil || cached.EndDate.After(now)) {
				metrics.AccessGateDecisionsTotal.WithLabelValues("allowed_cached").Inc()
				return next(c)
			}

			status, err := g.subscriptions.ResolveAccess(ctx, businessID, now)
			if err != nil {
				if g.policy == FailClosed {
					metrics.AccessGateDecisionsTotal.WithLabelValues("error_closed").Inc()
					g.logger.Error("access check failed, denying", zap.String("business_id", businessID.String()), zap.Error(err))
					return echo.NewHTTPError(http.StatusServiceUnavailable, "Subscription status unavailable")
				}
				metrics.AccessGateDecisionsTotal.WithLabelValues("error_open").Inc()
				g.logger.Warn("access check failed, allowing", zap.String("business_id", businessID.String()), zap.Error(err))
				return next(c)
			}

			if !status.Active {
				metrics.AccessGateDecisionsTotal.WithLabelValues("denied").Inc()
				return c.JSON(http.StatusPaymentRequired, map[string]interface{}{
					"success":             false,
					"subscriptionExpired": true,
					"message":             subscriptionExpiredMessage,
				})
			}

			if err := g.cache.SetAccess(ctx, businessID, status); err != nil {
				g.logger.Debug("access cache write failed", zap.String("business_id", businessID.String()), zap.Error(err))
			}
			metrics.AccessGateDecisionsTotal.WithLabelValues("allowed").Inc()
			return next(c)
		}
	}
}
