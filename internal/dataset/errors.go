package dataset

import (
	"errors"
	"fmt"
)

// FormatError reports that a stream could not be parsed under its declared
// format. Line is 1-based; 0 means the error is not tied to a line.
type FormatError struct {
	Format Format
	Line   int
	Err    error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset: invalid %s at line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("dataset: invalid %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// ColumnError reports a text-field selection that names no column.
type ColumnError struct {
	Name    string
	Columns []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("dataset: column %q not found (have %v)", e.Name, e.Columns)
}

func formatErr(f Format, line int, format string, args ...any) *FormatError {
	return &FormatError{Format: f, Line: line, Err: fmt.Errorf(format, args...)}
}
