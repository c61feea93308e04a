package validator

import (
	"clinicbook/pkg/logger"
	"clinicbook/pkg/model"
	"clinicbook/pkg/validation"
)

type SlotValidator struct {
	validate *validation.Validator
	logger   *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize slot validator", "error", err)
	}

	return &SlotValidator{
		validate: v,
		logger:   log,
	}
}

func (v *SlotValidator) Validate(slot *model.Slot) error {
	if err := validation.Struct(v.validate, slot); err != nil {
		return err
	}

	if slot.IsBooked() && slot.IsFree {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "is_free",
				Message: "a slot with a confirmed visit cannot be marked free",
			},
		}
	}

	return nil
}
