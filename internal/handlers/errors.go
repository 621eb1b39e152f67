package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/froydpay/internal/services"
)

// ErrorHandler renders every error returned by a handler as
// {"success": false, "error": ...}. Service errors are mapped by kind,
// *fiber.Error keeps its code and anything else becomes a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"
	var fields map[string]string

	var (
		se *services.Error
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &se):
		status = statusForKind(se.Kind)
		fields = se.Fields
		if status >= fiber.StatusInternalServerError {
			log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
			if se.Kind == services.KindProvider {
				message = se.Message
			}
		} else {
			message = se.Message
		}
	case errors.As(err, &fe):
		status = fe.Code
		message = fe.Message
	default:
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	if rid := c.GetRespHeader(fiber.HeaderXRequestID); rid != "" {
		body["request_id"] = rid
	}

	return c.Status(status).JSON(body)
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindAuth:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}
