package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizledger/internal/common"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type caller struct {
	userID     uuid.UUID
	businessID uuid.UUID
	role       string
}

func newCaller(role string) caller {
	return caller{userID: uuid.New(), businessID: uuid.New(), role: role}
}

// newContext builds an echo context for body with the caller's identity in the request context.
func newContext(method, target, body string, who *caller) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if who != nil {
		ctx := context.WithValue(req.Context(), common.UserIDKey, who.userID)
		ctx = context.WithValue(ctx, common.BusinessIDKey, who.businessID)
		ctx = context.WithValue(ctx, common.RoleKey, who.role)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, code, httpErr.Code)
}
