package database

import (
	"errors"
	"fmt"
)

var (
	// ErrDriverNotFound is returned when no installed ODBC driver matches
	// the Teradata driver name.
	ErrDriverNotFound = errors.New("odbc driver not found")
	// ErrDatabase wraps failures that exhausted every recovery attempt or
	// that a script could not get past.
	ErrDatabase    = errors.New("database error")
	ErrUnsupported = errors.New("operation not supported")
)

type UnsupportedError struct {
	Backend   Kind
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by the %s backend", e.Operation, e.Backend)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}
