package schema

import (
	"errors"
	"fmt"
)

// ErrWrongVariant is returned when a value does not belong to the question's type.
var ErrWrongVariant = errors.New("schema: value variant does not match question type")

// ConfigurationError reports an unusable session configuration, such as an
// empty label set for a label question. It is raised before review starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schema: invalid %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ValueError reports an answer that does not fit its question.
type ValueError struct {
	Type   QuestionType
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("schema: invalid %s value: %s", e.Type, e.Reason)
}

func valueErr(t QuestionType, format string, args ...any) *ValueError {
	return &ValueError{Type: t, Reason: fmt.Sprintf(format, args...)}
}
