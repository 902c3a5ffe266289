package httpapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

func FormatValidationErrors(errs validator.ValidationErrors) map[string]string {
	messages := make(map[string]string)
	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			messages[field] = fmt.Sprintf("%s is required.", err.Field())
		case "min":
			messages[field] = fmt.Sprintf("%s must be at least %s.", err.Field(), err.Param())
		case "max":
			messages[field] = fmt.Sprintf("%s must be at most %s.", err.Field(), err.Param())
		case "oneof":
			messages[field] = fmt.Sprintf("%s must be one of: %s.", err.Field(), err.Param())
		default:
			messages[field] = fmt.Sprintf("%s failed %s validation.", err.Field(), err.Tag())
		}
	}
	return messages
}
