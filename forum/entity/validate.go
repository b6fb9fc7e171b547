package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/keys"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// keyid: usable as a key segment.
	err := v.RegisterValidation("keyid", func(fl validator.FieldLevel) bool {
		return keys.ValidateID(fl.Field().String()) == nil
	})
	if err != nil {
		panic(err)
	}
	return v
}

type selfValidator interface {
	validate() error
}

// Validate checks the struct tags of v and any extra rules of its type.
// Failures wrap store.ErrInvalidArgument.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	if sv, ok := v.(selfValidator); ok {
		if err := sv.validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", store.ErrInvalidArgument, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "keyid":
		return fmt.Sprintf("%s must be a non-empty identifier without %q", field, keys.Delimiter)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
