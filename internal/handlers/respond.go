package handlers

import (
	"strconv"

	"bizledger/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError logs transient failures with their cause and writes the error envelope.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	if common.KindOf(err) == common.KindTransient {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return common.SendAppError(c, err)
}

func pagination(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return common.ValidatePaginationParams(limit, offset)
}
