package handlers

import (
	"errors"

	"study-quest/apperr"
	"study-quest/logger"

	"github.com/gofiber/fiber/v2"
)

// respondError maps a service failure onto the status and body API callers see.
// Backend details stay in the log.
func respondError(c *fiber.Ctx, err error) error {
	code := apperr.GetCode(err)
	status := code.HTTPStatus()

	msg := "internal error"
	switch code {
	case apperr.CodeStore:
		msg = "service temporarily unavailable, please retry"
	case apperr.CodeValidation, apperr.CodeNotFound, apperr.CodeConflict:
		var e *apperr.Error
		if errors.As(err, &e) {
			msg = e.Message
		}
	}

	if status >= fiber.StatusInternalServerError {
		logger.L().Errorw("❌ [API] request failed", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":     msg,
		"code":      code,
		"retryable": code.Retryable(),
	})
}

func badRequest(c *fiber.Ctx, msg string, cause error) error {
	body := fiber.Map{"error": msg, "code": apperr.CodeValidation, "retryable": false}
	if cause != nil {
		body["cause"] = cause.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
