package handlers

import (
	"errors"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/middleware"
)

// NewErrorHandler renders taxonomy errors with their mapped status. Anything
// else is logged in full and shown to the client as a generic failure.
func NewErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if e, ok := apperrors.As(err); ok {
			status := apperrors.HTTPStatus(e)
			if e.Kind == apperrors.KindRateLimit && e.RetryAfter > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
			}
			if status >= fiber.StatusInternalServerError {
				log.Error("❌ Request failed",
					"error_type", e.Kind,
					"method", c.Method(),
					"path", c.Path(),
					"request_id", middleware.GetRequestID(c),
					"error", err,
				)
			}
			return respondError(c, status, ErrorBody{
				ErrorType: string(e.Kind),
				Message:   e.Message,
				Field:     e.Field,
				Details:   e.Details,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return respondError(c, fe.Code, ErrorBody{ErrorType: "HTTPError", Message: fe.Message})
		}

		log.Error("❌ Unhandled error",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", middleware.GetRequestID(c),
			"user_id", middleware.UserID(c),
			"error", err,
		)
		return respondError(c, fiber.StatusInternalServerError, ErrorBody{
			ErrorType: string(apperrors.KindInternal),
			Message:   apperrors.ScrubbedMessage,
		})
	}
}
