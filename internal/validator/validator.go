// Package validator adapts go-playground/validator to echo and reports
// failures as a Validation error with a field -> message map.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/model"
)

var plateRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{2,18}[A-Za-z0-9]$`)

// Validator satisfies echo.Validator.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so clients see the fields they sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	// registration only fails on an empty tag name, so these cannot error
	_ = v.RegisterValidation("connector", func(fl validator.FieldLevel) bool {
		return model.ConnectorType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("connectors", func(fl validator.FieldLevel) bool {
		switch l := fl.Field().Interface().(type) {
		case model.ConnectorList:
			return l.Validate() == nil
		case *model.ConnectorList:
			return l != nil && l.Validate() == nil
		}
		return false
	})
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return plateRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	return &Validator{validate: v}
}

// Validate runs struct validation.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return apperror.Validation("validation failed").WithDetails(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if k := fe.Kind(); k == reflect.String || k == reflect.Slice {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "connector", "connectors":
		return "must be one of: " + connectorNames()
	case "plate":
		return "must be a valid license plate"
	case "numeric", "len":
		return "must be a 6 digit code"
	}
	return fmt.Sprintf("failed on the %q rule", fe.Tag())
}

func connectorNames() string {
	types := model.ConnectorTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
