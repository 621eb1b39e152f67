package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/froydpay/internal/utils"
)

const (
	merchantContextKey = "currentMerchantID"
	AdminKeyHeader     = "X-Admin-Key"
)

// MerchantAuthMiddleware validates merchant session tokens and loads the
// merchant ID into context.
func MerchantAuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		merchantID, err := utils.ParseMerchantToken(jwtSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(merchantContextKey, merchantID)
		return c.Next()
	}
}

// GetCurrentMerchantID extracts the authenticated merchant ID from context.
func GetCurrentMerchantID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(merchantContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// AdminKeyMiddleware guards operator endpoints with a static key. With no
// key configured the endpoints are disabled.
func AdminKeyMiddleware(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminKey == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "admin api is disabled")
		}

		provided := c.Get(AdminKeyHeader)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid admin key")
		}

		return c.Next()
	}
}
