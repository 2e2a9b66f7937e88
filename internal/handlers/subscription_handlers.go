package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bizledger/internal/common"
	"bizledger/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SubscriptionHandlers handles HTTP requests for subscriptions
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
	paymentVerifier     services.PaymentVerifier
	logger              *zap.Logger
	now                 func() time.Time
}

// NewSubscriptionHandlers creates a new subscription handlers instance
func NewSubscriptionHandlers(subscriptionService services.SubscriptionService, paymentVerifier services.PaymentVerifier, logger *zap.Logger) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
		paymentVerifier:     paymentVerifier,
		logger:              logger,
		now:                 time.Now,
	}
}

type orangePaymentRequest struct {
	TransactionID string  `json:"transactionId"`
	SenderNumber  string  `json:"senderNumber"`
	Amount        float64 `json:"amount"`
}

type verifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	Approved  bool   `json:"approved"`
	Notes     string `json:"notes"`
}

// SubmitOrangePayment handles POST /subscription/orange-payment
func (h *SubscriptionHandlers) SubmitOrangePayment(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}

	var req orangePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return common.SendValidationError(c, "transactionId", "Transaction ID is required")
	}
	if strings.TrimSpace(req.SenderNumber) == "" {
		return common.SendValidationError(c, "senderNumber", "Sender number is required")
	}
	if req.Amount <= 0 {
		return common.SendValidationError(c, "amount", "Amount must be positive")
	}

	result, err := h.paymentVerifier.Submit(ctx, businessID, services.PaymentClaim{
		TransactionID: req.TransactionID,
		SenderNumber:  req.SenderNumber,
		Amount:        req.Amount,
	})
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Kind == common.KindValidation && appErr.Checks != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": appErr.Message,
				"details": appErr.Details,
				"checks":  appErr.Checks,
			})
		}
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "Payment verified and subscription activated",
		"subscription": result.Subscription,
		"payment":      result.Payment,
	})
}

// VerifyOrangePayment handles POST /subscription/verify-orange-payment.
// Admins review any tenant's claim; owners only their own.
func (h *SubscriptionHandlers) VerifyOrangePayment(c echo.Context) error {
	ctx := c.Request().Context()
	reviewerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req verifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	paymentID, err := common.ValidateUUID(req.PaymentID, "paymentId")
	if err != nil {
		return common.SendValidationError(c, "paymentId", err.Error())
	}

	in := services.ReviewInput{
		PaymentID:  paymentID,
		Approved:   req.Approved,
		Notes:      req.Notes,
		ReviewerID: reviewerID,
	}
	if role, _ := common.GetRoleFromContext(ctx); role != common.RoleAdmin {
		businessID, ok := common.GetBusinessIDFromContext(ctx)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
		}
		in.BusinessScope = &businessID
	}

	result, err := h.paymentVerifier.Review(ctx, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "Payment rejected",
		"payment": result.Payment,
	}
	if req.Approved {
		resp["message"] = "Payment approved and subscription activated"
		resp["subscription"] = result.Subscription
	}
	return c.JSON(http.StatusOK, resp)
}

// GetStatus handles GET /subscription/status
func (h *SubscriptionHandlers) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}

	status, err := h.subscriptionService.ResolveAccess(ctx, businessID, h.now())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := map[string]interface{}{
		"active":        status.Active,
		"expired":       status.Expired,
		"daysRemaining": status.DaysRemaining,
		"endDate":       status.EndDate,
		"isTrial":       status.IsTrial,
	}
	switch {
	case status.Expired:
		resp["message"] = "Your subscription has expired. Please renew to continue."
	case status.IsTrial:
		resp["message"] = "You are on a free trial."
	}
	return c.JSON(http.StatusOK, resp)
}

// ListPayments handles GET /subscription/payments
func (h *SubscriptionHandlers) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}
	limit, offset := pagination(c)

	payments, err := h.paymentVerifier.ListPayments(ctx, businessID, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}

