package dto

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/gsg-it/helpdesk/pkg/util"
)

var validate = validator.New()

// Validate runs struct-tag validation and converts failures into the
// standard error envelope, keyed by field.
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		details := make(map[string]any, len(fieldErrors))
		for _, fieldErr := range fieldErrors {
			details[fieldErr.Field()] = fieldErr.Tag()
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return nil
}
