package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const accountKey = "account"

var ErrUnauthorized = errors.New("failed to authenticate user")

// AuthMiddleware resolves a bearer token (HS256, subject = account id) to the
// account it names and stores it on the echo context.
func AuthMiddleware(jwtSecret string, accountRepo repository.AccountRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID, err := parseBearer(c.Request().Header.Get(echo.HeaderAuthorization), jwtSecret)
			if err != nil {
				log.Debug().Err(err).Msg("bearer token rejected")
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Failed to authenticate user"})
			}

			account, err := accountRepo.FindByID(c.Request().Context(), accountID)
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
			}

			c.Set(accountKey, account)
			return next(c)
		}
	}
}

// PostOnly answers CORS preflight with 204 and rejects any other non-POST method.
func PostOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodPost:
				return next(c)
			case http.MethodOptions:
				return c.NoContent(http.StatusNoContent)
			default:
				return c.JSON(http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "Method not allowed"})
			}
		}
	}
}

func AccountFromContext(c echo.Context) *model.Account {
	account, _ := c.Get(accountKey).(*model.Account)
	return account
}

func parseBearer(header, secret string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrUnauthorized
	}
	if secret == "" {
		return "", fmt.Errorf("%w: jwt secret not configured", ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}
