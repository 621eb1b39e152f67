package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/froydpay/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the request body into dst and runs its validate tags.
// extra holds field errors found by the caller that tags cannot express.
func parseBody(c *fiber.Ctx, dst any, extra map[string]string) error {
	if err := c.BodyParser(dst); err != nil {
		return services.ValidationError("invalid request body", nil)
	}
	return validateStruct(dst, extra)
}

func validateStruct(dst any, extra map[string]string) error {
	fields := fieldErrors(validate.Struct(dst))
	for k, v := range extra {
		fields[k] = v
	}
	if len(fields) > 0 {
		return services.ValidationError("invalid request", fields)
	}
	return nil
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	out["_"] = "invalid request"
	return out
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "required"
	case "len":
		return "must be exactly " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "alpha":
		return "must contain letters only"
	case "url", "http_url":
		return "must be an absolute http(s) URL"
	case "oneof":
		return "must be one of: " + param
	case "uuid":
		return "must be a UUID"
	default:
		return "invalid value"
	}
}
