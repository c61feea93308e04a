package validator

import (
	"fmt"
	"strconv"

	"clinicbook/pkg/logger"
	"clinicbook/pkg/model"
	"clinicbook/pkg/sanitizer"
	"clinicbook/pkg/validation"
)

// Answer is a validated wizard answer ready to be applied to a session.
// IsAdult is used for the age field, Value for every other field. An empty
// Value clears the field.
type Answer struct {
	Field   model.SessionField
	IsAdult *bool
	Value   string
}

// answerRules holds the validator tag applied to each string-valued field.
// isAdult and slotId are handled separately.
var answerRules = map[model.SessionField]string{
	model.FieldCategoryID:    "omitempty,max=128,printascii",
	model.FieldProductID:     "omitempty,max=128,printascii",
	model.FieldVisitModeID:   "omitempty,max=128,printascii",
	model.FieldPatientID:     "omitempty,max=128,printascii",
	model.FieldPaymentMethod: "omitempty,payment_method",
}

type AnswerValidator struct {
	validate *validation.Validator
	logger   *logger.Logger
}

func NewAnswerValidator(log *logger.Logger) *AnswerValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize answer validator", "error", err)
	}

	return &AnswerValidator{
		validate: v,
		logger:   log,
	}
}

// Parse checks raw against the rule for field. raw is a value decoded from
// JSON, so it is nil, a bool or a string for every accepted field.
func (v *AnswerValidator) Parse(field string, raw any) (*Answer, error) {
	f := model.SessionField(field)

	switch f {
	case model.FieldIsAdult:
		return v.parseIsAdult(raw)
	case model.FieldSlotID:
		return nil, fieldError(field, "slot is chosen through slot selection")
	}

	tag, ok := answerRules[f]
	if !ok {
		return nil, fieldError(field, "unknown field")
	}

	var value string
	switch x := raw.(type) {
	case nil:
	case string:
		value = sanitizer.NormalizeID(x)
	default:
		return nil, fieldError(field, "must be a string")
	}

	if err := validation.Var(v.validate, field, value, tag); err != nil {
		return nil, err
	}
	return &Answer{Field: f, Value: value}, nil
}

func (v *AnswerValidator) parseIsAdult(raw any) (*Answer, error) {
	field := string(model.FieldIsAdult)

	switch x := raw.(type) {
	case nil:
		return &Answer{Field: model.FieldIsAdult}, nil
	case bool:
		return &Answer{Field: model.FieldIsAdult, IsAdult: &x}, nil
	case string:
		if err := validation.Var(v.validate, field, x, "boolean"); err != nil {
			return nil, err
		}
		b, _ := strconv.ParseBool(x)
		return &Answer{Field: model.FieldIsAdult, IsAdult: &b}, nil
	}
	return nil, fieldError(field, fmt.Sprintf("must be true or false, got %T", raw))
}

// Visit runs the struct rules on a visit about to be submitted.
func (v *AnswerValidator) Visit(visit *model.Visit) error {
	return validation.Struct(v.validate, visit)
}

func fieldError(field, message string) error {
	return validation.ValidationErrors{
		validation.ValidationError{Field: field, Message: message},
	}
}
