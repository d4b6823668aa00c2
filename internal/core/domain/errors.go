package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrValidation    = errors.New("validation failed")
	ErrTemporary     = errors.New("temporary failure")
	ErrNetwork       = errors.New("backend unreachable")
	ErrRunInProgress = errors.New("check already running")
	ErrEmptyQueue    = errors.New("queue is empty")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// KindForStatus maps a backend HTTP status to an error kind, or nil when
// the status has no dedicated kind.
func KindForStatus(code int) error {
	switch code {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 400, 422:
		return ErrValidation
	case 408, 429, 500, 502, 503, 504:
		return ErrTemporary
	}
	return nil
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
