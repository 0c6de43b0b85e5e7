package service

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	appErrors "github.com/Ignas/schooltool.lyceum/pkg/errors"
)

// NewValidator returns a validator that understands the calendar tags used by
// request structs.
func NewValidator() *validator.Validate {
	validate := validator.New()
	registerCalendarValidations(validate)
	return validate
}

func registerCalendarValidations(validate *validator.Validate) {
	_ = validate.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		switch calendar.Frequency(fl.Field().String()) {
		case calendar.Daily, calendar.Weekly, calendar.Monthly, calendar.Yearly:
			return true
		default:
			return false
		}
	})
	_ = validate.RegisterValidation("monthlymode", func(fl validator.FieldLevel) bool {
		switch calendar.MonthlyMode(fl.Field().String()) {
		case calendar.MonthDay, calendar.NthWeekday, calendar.LastWeekday:
			return true
		default:
			return false
		}
	})
	_ = validate.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return true
		}
		_, err := time.LoadLocation(name)
		return err == nil
	})
}

func ensureValidator(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		return NewValidator()
	}
	registerCalendarValidations(validate)
	return validate
}

func validationError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
