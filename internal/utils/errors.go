package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide whether to retry.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindDecode    ErrorKind = "decode"
)

// AppError wraps an operation, its failure class, and the underlying error.
type AppError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op string, kind ErrorKind, err error) error {
	return &AppError{Op: op, Kind: kind, Err: err}
}

// KindOf reports the ErrorKind of the first AppError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}
