package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"vrent/pkg/logger"
	"vrent/pkg/model"
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

type RentalValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRentalValidator(log *logger.Logger) *RentalValidator {
	return &RentalValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *RentalValidator) ValidateCreate(req *model.CreateRentalRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return validateDateOrder(req.StartDate, req.EndDate)
}

func (v *RentalValidator) ValidateReschedule(req *model.RescheduleRentalRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return validateDateOrder(req.StartDate, req.EndDate)
}

func (v *RentalValidator) ValidateFilter(filter *model.RentalFilter) error {
	if err := v.validate.Struct(filter); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// validateDateOrder rejects inverted ranges. Both strings already passed
// the datetime tag, so parse errors cannot occur here.
func validateDateOrder(start, end string) error {
	startDate, err := model.ParseDate(start)
	if err != nil {
		return ValidationErrors{{Field: "StartDate", Message: "StartDate must be a valid YYYY-MM-DD date"}}
	}
	endDate, err := model.ParseDate(end)
	if err != nil {
		return ValidationErrors{{Field: "EndDate", Message: "EndDate must be a valid YYYY-MM-DD date"}}
	}
	if endDate.Before(startDate) {
		return ValidationErrors{{Field: "EndDate", Message: "EndDate must not be before StartDate"}}
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
