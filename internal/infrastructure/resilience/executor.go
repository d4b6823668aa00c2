package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	// Unreachable marks failures without any backend response; only these
	// are eligible for a fallback.
	Unreachable bool
}

type ErrorClassifier func(err error) ErrorClassification

// BreakerObserver is told about every breaker transition of an operation.
type BreakerObserver func(operation, from, to string)

// Executor guards backend operations with one breaker per operation name
// and the bounded retry each policy asks for.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[struct{}]
	observers []BreakerObserver
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   slog.Default(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// OnStateChange registers fn for breakers created afterwards as well as
// existing ones.
func (e *Executor) OnStateChange(fn BreakerObserver) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// BreakerState reports the breaker state of operation, "closed" when the
// operation has never run.
func (e *Executor) BreakerState(operation string) string {
	e.mu.Lock()
	breaker, ok := e.breakers[operationName(operation)]
	e.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return breaker.State().String()
}

// Execute runs fn once, or up to the configured attempts when the policy
// allows retries, behind the operation's breaker.
func (e *Executor) Execute(
	ctx context.Context,
	policy Policy,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	run := attemptLoop{
		operation:  operationName(policy.Operation),
		attempts:   1,
		schedule:   newBackoff(e.cfg),
		classifier: classifier,
		logger:     e.logger,
	}
	if policy.Retry {
		run.attempts = e.cfg.RetryMaxAttempts
	}

	if !e.cfg.BreakerEnabled {
		return run.do(ctx, fn)
	}
	_, err := e.breaker(run.operation, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, run.do(ctx, fn)
	})
	return err
}

func operationName(raw string) string {
	if op := strings.TrimSpace(raw); op != "" {
		return op
	}
	return "unknown"
}

type attemptLoop struct {
	operation  string
	attempts   int
	schedule   *backoff
	classifier ErrorClassifier
	logger     *slog.Logger
}

func (l attemptLoop) do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= l.attempts || !l.classifier(err).Retryable {
			return err
		}

		wait := l.schedule.next()
		l.logger.Warn("backend_retry",
			"operation", l.operation,
			"attempt", attempt,
			"max_attempts", l.attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if !sleep(ctx, wait) {
			return err
		}
	}
}

// backoff yields exponentially growing waits capped at the configured max.
type backoff struct {
	current    time.Duration
	max        time.Duration
	multiplier float64
}

func newBackoff(cfg Config) *backoff {
	return &backoff{current: cfg.RetryInitialBackoff, max: cfg.RetryMaxBackoff, multiplier: cfg.RetryMultiplier}
}

func (b *backoff) next() time.Duration {
	wait := min(b.current, b.max)
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.max)
	return wait
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: e.notifyStateChange,
	})
	e.breakers[operation] = breaker
	return breaker
}

// notifyStateChange runs inside gobreaker's own lock, never under e.mu.
func (e *Executor) notifyStateChange(name string, from, to gobreaker.State) {
	e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())

	e.mu.Lock()
	observers := append([]BreakerObserver(nil), e.observers...)
	e.mu.Unlock()
	for _, fn := range observers {
		fn(name, from.String(), to.String())
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
