// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"bounty-listing-system/logger"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuth validates the Bearer token the gateway attaches to every request.
// Paths under any of the open prefixes skip the check (probes and static assets).
func GatewayAuth(expectedToken string, log logger.Logger, open ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions || isOpenPath(c.Path(), open) {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("[GATEWAY_AUTH] missing Authorization header", logger.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// raw tokens without the Bearer prefix are accepted too
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Warn("[GATEWAY_AUTH] invalid token", logger.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}

func isOpenPath(path string, open []string) bool {
	for _, p := range open {
		if path == p || strings.HasPrefix(path, strings.TrimRight(p, "/")+"/") {
			return true
		}
	}
	return false
}
