package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/nimbus/internal/auth"
)

const claimsKey = "claims"

// requireToken rejects requests without a valid bearer token and stores the
// token's claims on the context.
func requireToken(tokens *auth.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) auth.Claims {
	claims, _ := c.Locals(claimsKey).(auth.Claims)
	return claims
}
