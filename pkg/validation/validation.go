package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"clinicbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an AppError details map.
func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return map[string]any{"fields": fields}
}

type Validator = validator.Validate

// New returns a validator that reports json field names and knows the
// domain tags used by the models.
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("payment_method", validatePaymentMethod); err != nil {
		return nil, fmt.Errorf("register payment_method: %w", err)
	}
	return v, nil
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	method := fl.Field().String()
	for _, m := range model.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Struct validates s and converts failures into ValidationErrors.
func Struct(v *Validator, s any) error {
	if err := v.Struct(s); err != nil {
		return translate(err, "")
	}
	return nil
}

// Var validates a single value against tag, reporting it under field.
func Var(v *Validator, field string, value any, tag string) error {
	if err := v.Var(value, tag); err != nil {
		return translate(err, field)
	}
	return nil
}

func translate(err error, fieldOverride string) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	var out ValidationErrors
	for _, fe := range validationErrs {
		field := fe.Field()
		if fieldOverride != "" {
			field = fieldOverride
		}

		message := fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		case "unique":
			message = fmt.Sprintf("%s must not contain duplicates", field)
		case "payment_method":
			message = fmt.Sprintf("%s must be one of: %s", field, strings.Join(model.PaymentMethods, " "))
		case "boolean":
			message = fmt.Sprintf("%s must be true or false", field)
		case "printascii", "excludesall":
			message = fmt.Sprintf("%s contains invalid characters", field)
		}

		out = append(out, ValidationError{Field: field, Message: message})
	}
	return out
}
