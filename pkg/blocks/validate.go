package blocks

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return fld.Name
			}
			return name
		})
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(fmt.Sprintf("blocks: register notblank: %v", err))
		}
		validate = v
	})
	return validate
}

// Validate checks the required fields of a content payload. It is purely
// structural and never leaves the process. A failure is a *ValidationError
// carrying one message per violated field.
func Validate(c Content) error {
	if c == nil {
		return fmt.Errorf("validate: no content")
	}
	if _, ok := c.(*UnknownContent); ok {
		return fmt.Errorf("validate: %w: %s", ErrUnknownType, c.BlockType())
	}

	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %s: %w", c.BlockType(), err)
	}

	ve := &ValidationError{Type: c.BlockType()}
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		if seen[field] {
			continue
		}
		seen[field] = true
		ve.Fields = append(ve.Fields, FieldError{Field: field, Message: fieldMessage(fe)})
	}
	return ve
}

// fieldPath drops the struct name prefix from a validator namespace:
// "StatsContent.entries[0].value" becomes "entries[0].value".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("needs at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid (" + fe.Tag() + ")"
}
