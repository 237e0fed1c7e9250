package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"leadflow/utils"
)

// Protected guards the API with service bearer tokens. Callers are
// internal subsystems (schedulers, dashboards, CRM sync), so there is no
// user lookup; the signed claims are the identity.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization required",
			})
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization format",
			})
		}

		claims, err := utils.ParseServiceToken(tokenParts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("service", claims.Service)
		return c.Next()
	}
}
