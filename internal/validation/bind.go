package validation

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
)

// Bind decodes the request's JSON body into out and validates it with v.
// A body that does not decode is reported as invalid_request_body; field
// failures come back as an apperr.InvalidFields error.
func Bind(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("invalid_request_body", "request body is empty")
		}
		return apperr.Validation("invalid_request_body", err.Error())
	}
	return fieldErrors(v.Struct(out))
}

// fieldErrors converts a validator result into an apperr error.
func fieldErrors(err error) error {
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("validation_failed", err.Error())
	}
	return apperr.InvalidFields(validationErrorsToMap(ve))
}

// validationErrorsToMap keys each failure tag by its JSON field path.
func validationErrorsToMap(ve validatorv10.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fieldPath(fe)] = fe.Tag()
	}
	return out
}

// fieldPath drops the root struct name ("ShippingRequest.email" -> "email").
func fieldPath(fe validatorv10.FieldError) string {
	_, rest, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Namespace()
	}
	return rest
}
