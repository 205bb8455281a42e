package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// RegisterValidators installs the custom tags used by request payloads on
// gin's validator and reports fields by their JSON name.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return ConfigureValidator(v)
}

// ConfigureValidator registers notblank and the JSON tag name function on v.
func ConfigureValidator(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return fmt.Errorf("failed to register notblank validator: %w", err)
	}
	return nil
}

// jsonFieldName names a field by its json tag, or by its form tag for query
// parameters.
func jsonFieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// ValidationErrors maps each failed field to a readable message. It returns
// nil when err is not a validation error (e.g. malformed JSON).
func ValidationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := details[fe.Field()]; seen {
			continue
		}
		details[fe.Field()] = fieldMessage(fe)
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	label := fe.StructField()
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be less than %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "gte":
		if fe.Param() == "0" {
			return label + " must not be negative"
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", label, fe.Tag())
	}
}
