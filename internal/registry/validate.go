package registry

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// usernamePattern mirrors the classic account rule: letters, digits and
// @/./+/-/_ only.
var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// newValidator builds a validator that reports fields by their form name
// and knows the registry's custom tags.
func newValidator(emailDomain string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	suffix := "@" + strings.ToLower(emailDomain)
	v.RegisterValidation("campusemail", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(strings.ToLower(fl.Field().String()), suffix)
	})

	return v
}

// validateStruct runs the validator and converts failures into form
// field messages.
func (s *Service) validateStruct(in any) FieldErrors {
	fe := FieldErrors{}
	err := s.validate.Struct(in)
	if err == nil {
		return fe
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fe.Add("__all__", err.Error())
		return fe
	}
	for _, e := range verrs {
		fe.Add(e.Field(), s.message(e))
	}
	return fe
}

func (s *Service) message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", e.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", e.Param())
	case "email":
		return "Enter a valid email address."
	case "campusemail":
		return fmt.Sprintf("Only emails from @%s are allowed.", s.emailDomain)
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "eqfield":
		return "The two password fields didn't match."
	case "datetime":
		return "Enter a valid date."
	default:
		return "Enter a valid value."
	}
}
