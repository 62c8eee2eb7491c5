package authapi

import (
	"errors"
	"fmt"
	"strings"

	"counsel/cmd/identity"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := identity.ParseRole(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("specialization", func(fl validator.FieldLevel) bool {
		return identity.ValidSpecialization(fl.Field().String())
	})
	v.RegisterStructValidation(lawyerNeedsSpecialization, demoAccountRequest{}, otpRequest{})
	return v
}

func lawyerNeedsSpecialization(sl validator.StructLevel) {
	var roleName, spec string
	switch req := sl.Current().Interface().(type) {
	case demoAccountRequest:
		roleName, spec = req.Role, req.Specialization
	case otpRequest:
		roleName, spec = req.Role, req.Specialization
	default:
		return
	}
	if role, _ := identity.ParseRole(roleName); role == identity.RoleLawyer && strings.TrimSpace(spec) == "" {
		sl.ReportError(spec, "Specialization", "specialization", "required_for_lawyer", "")
	}
}

// describeValidation turns validator errors into a short client message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "a valid email is required"
	case "role":
		return "invalid user role"
	case "specialization", "required_for_lawyer":
		return "a valid specialization is required for lawyers"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len", "numeric":
		return field + " must be a 6 digit code"
	default:
		return field + " is invalid"
	}
}
