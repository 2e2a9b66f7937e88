package handlers

import (
	"net/http"
	"strings"

	"bizledger/internal/common"
	"bizledger/internal/models"
	"bizledger/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxDebtAmount = 1e12

// DebtHandlers handles HTTP requests for the customer debt ledger
type DebtHandlers struct {
	debtService services.DebtService
	logger      *zap.Logger
}

// NewDebtHandlers creates a new debt handlers instance
func NewDebtHandlers(debtService services.DebtService, logger *zap.Logger) *DebtHandlers {
	return &DebtHandlers{debtService: debtService, logger: logger}
}

type createDebtRequest struct {
	CustomerID  string  `json:"customerId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	DueDate     string  `json:"dueDate"`
}

type updateDebtRequest struct {
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
}

type recordPaymentRequest struct {
	DebtID string  `json:"debtId"`
	Amount float64 `json:"amount"`
	Notes  string  `json:"notes"`
}

// CreateDebt handles POST /debt
func (h *DebtHandlers) CreateDebt(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}

	var req createDebtRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := common.ValidatePositiveFloat(req.Amount, "amount", maxDebtAmount); err != nil {
		return common.SendValidationError(c, "amount", err.Error())
	}

	in := services.CreateDebtInput{
		Amount:      req.Amount,
		Description: common.StringPtr(req.Description),
	}
	if strings.TrimSpace(req.CustomerID) != "" {
		customerID, err := common.ValidateUUID(req.CustomerID, "customerId")
		if err != nil {
			return common.SendValidationError(c, "customerId", err.Error())
		}
		in.CustomerID = &customerID
	}
	dueDate, err := common.ParseDate(req.DueDate, "dueDate")
	if err != nil {
		return common.SendValidationError(c, "dueDate", err.Error())
	}
	in.DueDate = dueDate

	debt, err := h.debtService.CreateDebt(ctx, businessID, in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, debt)
}

// UpdateDebt handles PUT /debt/:id
func (h *DebtHandlers) UpdateDebt(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}
	debtID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req updateDebtRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	var patch models.DebtPatch
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		patch.Description = &description
	}
	if req.DueDate != nil {
		dueDate, err := common.ParseDate(*req.DueDate, "dueDate")
		if err != nil {
			return common.SendValidationError(c, "dueDate", err.Error())
		}
		patch.DueDate = dueDate
	}
	if patch.Description == nil && patch.DueDate == nil {
		return common.SendValidationError(c, "body", "No fields to update")
	}

	debt, err := h.debtService.UpdateDebt(ctx, businessID, debtID, patch)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, debt)
}

// ListDebts handles GET /debt
func (h *DebtHandlers) ListDebts(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}
	limit, offset := pagination(c)

	var status *string
	if s := strings.TrimSpace(c.QueryParam("status")); s != "" {
		switch s {
		case models.DebtStatusPending, models.DebtStatusPartial, models.DebtStatusPaid:
			status = &s
		default:
			return common.SendValidationError(c, "status", "status must be one of pending, partial, paid")
		}
	}

	debts, err := h.debtService.ListDebts(ctx, businessID, status, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"debts":  debts,
		"limit":  limit,
		"offset": offset,
	})
}

// RecordPayment handles POST /debt/payment
func (h *DebtHandlers) RecordPayment(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}

	var req recordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	debtID, err := common.ValidateUUID(req.DebtID, "debtId")
	if err != nil {
		return common.SendValidationError(c, "debtId", err.Error())
	}
	if err := common.ValidatePositiveFloat(req.Amount, "amount", maxDebtAmount); err != nil {
		return common.SendValidationError(c, "amount", err.Error())
	}

	result, err := h.debtService.RecordPayment(ctx, businessID, services.RecordPaymentInput{
		DebtID: debtID,
		Amount: req.Amount,
		Notes:  common.StringPtr(req.Notes),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "Payment recorded successfully",
		"paymentAmount": result.PaymentAmount,
		"newBalance":    result.NewBalance,
		"status":        result.Status,
	})
}

// GetSummary handles GET /debt/summary
func (h *DebtHandlers) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}

	summary, err := h.debtService.GetSummary(ctx, businessID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ListPayments handles GET /debt/payments/:debtId
func (h *DebtHandlers) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}
	debtID, err := common.ValidateUUID(c.Param("debtId"), "debtId")
	if err != nil {
		return common.SendValidationError(c, "debtId", err.Error())
	}

	payments, err := h.debtService.ListPayments(ctx, businessID, debtID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payments": payments})
}

// GetCustomerDebt handles GET /debt/customer/:customerId
func (h *DebtHandlers) GetCustomerDebt(c echo.Context) error {
	ctx := c.Request().Context()
	businessID, ok := common.GetBusinessIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Business not found")
	}
	customerID, err := common.ValidateUUID(c.Param("customerId"), "customerId")
	if err != nil {
		return common.SendValidationError(c, "customerId", err.Error())
	}

	debt, err := h.debtService.GetCustomerDebt(ctx, businessID, customerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, debt)
}
