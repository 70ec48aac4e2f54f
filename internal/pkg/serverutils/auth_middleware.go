package serverutils

import (
	"mediahub-be/internal/auth"

	"github.com/gofiber/fiber/v2"
)

const (
	AuthCookie = "auth"
	AuthHeader = "X-Auth"
	LocalsUser = "username"
)

// AuthMiddleware reads the auth payload from the cookie, falling back to the
// X-Auth header, and stores the username in Locals.
func AuthMiddleware(verifier *auth.Verifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		raw := ctx.Cookies(AuthCookie)
		if raw == "" {
			raw = ctx.Get(AuthHeader)
		}
		payload, err := verifier.Verify(raw)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse("Unauthorized", err))
		}
		ctx.Locals(LocalsUser, payload.Username)
		return ctx.Next()
	}
}

// CurrentUser returns the username set by AuthMiddleware.
func CurrentUser(ctx *fiber.Ctx) string {
	user, _ := ctx.Locals(LocalsUser).(string)
	return user
}
