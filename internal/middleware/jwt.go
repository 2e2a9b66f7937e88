package middleware

import (
	"context"
	"errors"
	"net/http"

	"bizledger/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTCustomClaims are the claims issued by the auth service. Subject carries the user id.
type JWTCustomClaims struct {
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// JWTMiddleware validates HS256 bearer tokens and places the caller's user,
// business and role in the request context.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JWTCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			claims, ok := token.Claims.(*JWTCustomClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}
			ctx, err := contextWithClaims(c.Request().Context(), claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		})
	}
}

func contextWithClaims(ctx context.Context, claims *JWTCustomClaims) (context.Context, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, errors.New("invalid subject")
	}
	businessID, err := uuid.Parse(claims.BusinessID)
	if err != nil {
		return ctx, errors.New("invalid business_id")
	}
	ctx = context.WithValue(ctx, common.UserIDKey, userID)
	ctx = context.WithValue(ctx, common.BusinessIDKey, businessID)
	ctx = context.WithValue(ctx, common.RoleKey, claims.Role)
	return ctx, nil
}
