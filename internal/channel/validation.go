package channel

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// ValidationError converts a validator failure into a VALIDATION_FAILED error listing the offending fields.
func ValidationError(message string, err error) error {
	details := map[string]any{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		details["fields"] = strings.Join(fields, ",")
	}
	return apperrors.NewValidationError(message, details)
}
