package resilience

import (
	"context"
	"log/slog"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// Fallback supplies substitute values for a degraded operation. Cached
// returns false when nothing usable was stored.
type Fallback[T any] struct {
	Cached func() (T, bool)
	Mock   func() T
}

// Serve runs fn under policy. When fn fails without reaching the backend,
// or the breaker for the operation is open, the policy's fallback is served
// and the returned source says where the value came from. Errors that carry
// a backend response are always returned unchanged.
func Serve[T any](
	ctx context.Context,
	exec *Executor,
	policy Policy,
	fn func(context.Context) (T, error),
	classifier ErrorClassifier,
	fallback Fallback[T],
) (T, domain.DataSource, error) {
	var out T
	err := exec.Execute(ctx, policy, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, classifier)
	if err == nil {
		return out, domain.SourceLive, nil
	}

	if classifier == nil {
		classifier = defaultClassifier
	}
	if !IsCircuitOpen(err) && !classifier(err).Unreachable {
		return out, domain.SourceLive, err
	}

	switch policy.Fallback {
	case FallbackCached:
		if fallback.Cached != nil {
			if v, ok := fallback.Cached(); ok {
				slog.Warn("fallback_served", "operation", policy.Operation, "source", domain.SourceCache, "error", err)
				return v, domain.SourceCache, nil
			}
		}
	case FallbackMock:
		if fallback.Mock != nil {
			slog.Warn("fallback_served", "operation", policy.Operation, "source", domain.SourceMock, "error", err)
			return fallback.Mock(), domain.SourceMock, nil
		}
	}
	var zero T
	return zero, domain.SourceLive, err
}
