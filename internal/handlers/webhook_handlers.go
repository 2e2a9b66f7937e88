package handlers

import (
	"io"
	"net/http"

	"bizledger/internal/common"
	"bizledger/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 65536

// WebhookHandlers handles HTTP requests for webhooks
type WebhookHandlers struct {
	processor services.WebhookProcessor
	logger    *zap.Logger
}

// NewWebhookHandlers creates a new webhook handlers instance
func NewWebhookHandlers(processor services.WebhookProcessor, logger *zap.Logger) *WebhookHandlers {
	return &WebhookHandlers{processor: processor, logger: logger}
}

// StripeWebhook handles POST /subscription/webhook. The raw body is needed
// for signature verification.
func (h *WebhookHandlers) StripeWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get("stripe-signature")
	if err := h.processor.Handle(c.Request().Context(), body, signature); err != nil {
		if common.KindOf(err) == common.KindSignature {
			h.logger.Warn("stripe webhook rejected", zap.Error(err))
		}
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
