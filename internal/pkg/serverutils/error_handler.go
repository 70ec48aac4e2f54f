package serverutils

import (
	"errors"

	"mediahub-be/internal/auth"
	"mediahub-be/internal/service"
	"mediahub-be/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON
// error envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status, message := StatusFor(err)
		body := ErrorResponse(message, err)
		var verr *ValidationError
		if errors.As(err, &verr) {
			body.Fields = verr.Fields
		}
		return ctx.Status(status).JSON(body)
	}
}

// StatusFor maps an error to its HTTP status and a short message.
func StatusFor(err error) (int, string) {
	var ferr *fiber.Error
	var verr *ValidationError
	switch {
	case errors.As(err, &ferr):
		return ferr.Code, ferr.Message
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, "Validation failed"
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound, "Not found"
	case errors.Is(err, storage.ErrInvalidArgument):
		return fiber.StatusBadRequest, "Invalid request"
	case errors.Is(err, storage.ErrUserExists),
		errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrRequestHandled):
		return fiber.StatusConflict, "Conflict"
	case errors.Is(err, storage.ErrInvalidCredentials),
		errors.Is(err, auth.ErrMissingAuth),
		errors.Is(err, auth.ErrMalformedAuth),
		errors.Is(err, auth.ErrMissingUsername),
		errors.Is(err, auth.ErrInvalidSignature):
		return fiber.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, "Forbidden"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}
