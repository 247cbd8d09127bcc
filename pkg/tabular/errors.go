package tabular

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySpec indicates a column declaration that produced no fields.
	ErrEmptySpec = errors.New("no fields specified")
	// ErrInvalidDocument indicates data page content that is not a tabular JSON object.
	ErrInvalidDocument = errors.New("could not parse tabular data")
)

// UnknownFieldError reports a bare column name that is not a known field.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field: [%s]", e.Name)
}
