// ABOUTME: Option validation for euphony constructors and setters
// ABOUTME: Uses go-playground/validator with a power-of-two tag for FFT sizes
package euphony

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/harperreed/euphony-go/pkg/engine"
)

// validate is the shared validator for option structs and setters
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		return engine.IsValidFFTSize(int(fl.Field().Int()))
	})
}

// AnalyserOptions configures an Analyser. Nil fields take defaults.
type AnalyserOptions struct {
	FFTSize               *int     `validate:"omitempty,pow2"`
	MinDecibels           *float64 `validate:"omitempty"`
	MaxDecibels           *float64 `validate:"omitempty"`
	SmoothingTimeConstant *float64 `validate:"omitempty,gte=0,lte=1"`
	Threshold             *float64 `validate:"omitempty,gte=0,lte=1"`
	NumberOfBands         *int     `validate:"omitempty,min=1"`
}

// ControllerOptions configures the gain and analyser shared by every producer
type ControllerOptions struct {
	// Context the nodes are created in (default: DefaultContext())
	Context *engine.Context `validate:"-"`

	// Volume is the initial gain (default: 1)
	Volume *float64 `validate:"omitempty"`

	Analyser AnalyserOptions
}

// PlaybackOptions configures a Playback
type PlaybackOptions struct {
	ControllerOptions

	// Loop makes the source wrap at the end of the buffer (default: false)
	Loop bool

	// Fetcher loads bytes for Load (default: HTTP and local files, no cache)
	Fetcher Fetcher `validate:"-"`
}

// GroupOptions configures a Group
type GroupOptions struct {
	ControllerOptions
}

// validateStruct runs tag validation and converts the first failure
func validateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return toConfigurationError("", nil, err)
	}
	return nil
}

// validateVar checks a single value against tag
func validateVar(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return toConfigurationError(field, value, err)
	}
	return nil
}

func toConfigurationError(field string, value any, err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		e := verrs[0]
		if field == "" {
			field = e.Field()
			value = e.Value()
		}
		return &ConfigurationError{Field: field, Value: value, Message: formatValidationMessage(e)}
	}
	return &ConfigurationError{Field: field, Value: value, Message: err.Error()}
}

// formatValidationMessage creates a human-readable message from a validator error
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", e.Param())
	case "pow2":
		return fmt.Sprintf("must be a power of two in [%d, %d]", engine.MinFFTSize, engine.MaxFFTSize)
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// Int returns a pointer to v for optional int fields
func Int(v int) *int { return &v }

// Float64 returns a pointer to v for optional float fields
func Float64(v float64) *float64 { return &v }
