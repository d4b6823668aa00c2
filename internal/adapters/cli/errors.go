package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/usecase"
)

type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func describeError(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrNetwork):
		return "could not reach server (" + err.Error() + ")"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "not signed in or session expired, run `plagctl login` (" + err.Error() + ")"
	case domain.IsKind(err, domain.ErrForbidden):
		return "permission denied (" + err.Error() + ")"
	case domain.IsKind(err, domain.ErrEmptyQueue):
		return "no documents queued, add some with `plagctl queue add`"
	case domain.IsKind(err, domain.ErrRunInProgress):
		return "a check is already running"
	case domain.IsKind(err, domain.ErrTemporary):
		return "server is temporarily unavailable (" + err.Error() + ")"
	case errors.Is(err, usecase.ErrOrchestratorClosed):
		return "check abandoned"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out waiting for the server"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return err.Error()
	}
}
