package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/infrastructure/resilience"
)

const (
	OpDocumentsList       = "documents.list"
	OpDocumentsUpload     = "documents.upload"
	OpDocumentsDelete     = "documents.delete"
	OpCheckByNames        = "check.by_names"
	OpCheckAll            = "check.all"
	OpComparePair         = "compare.pair"
	OpDiscovery           = "discovery"
	OpAuthToken           = "auth.token"
	OpAuthMe              = "auth.me"
	OpNotificationsList   = "notifications.list"
	OpNotificationRead    = "notifications.read"
	OpNotificationReadAll = "notifications.read_all"
	OpNotificationDelete  = "notifications.delete"
	OpNotificationSetting = "notifications.settings"
	OpAccountPassword     = "account.password"
	OpAccountMSV          = "account.msv"
	OpAccountAvatar       = "account.avatar"
)

// DefaultPolicies is the per-endpoint degradation table. Reads the user
// browses fall back to the last good response; notification calls keep the
// UI usable with mock data; anything that starts or mutates work fails
// loudly.
func DefaultPolicies() resilience.PolicySet {
	return resilience.PolicySet{
		OpDocumentsList:       {Retry: true, Fallback: resilience.FallbackCached},
		OpDocumentsUpload:     {Fallback: resilience.FallbackNone},
		OpDocumentsDelete:     {Fallback: resilience.FallbackNone},
		OpCheckByNames:        {Fallback: resilience.FallbackNone},
		OpCheckAll:            {Fallback: resilience.FallbackNone},
		OpComparePair:         {Fallback: resilience.FallbackNone},
		OpDiscovery:           {Fallback: resilience.FallbackNone},
		OpAuthToken:           {Fallback: resilience.FallbackNone},
		OpAuthMe:              {Retry: true, Fallback: resilience.FallbackCached},
		OpNotificationsList:   {Retry: true, Fallback: resilience.FallbackMock},
		OpNotificationRead:    {Fallback: resilience.FallbackMock},
		OpNotificationReadAll: {Fallback: resilience.FallbackMock},
		OpNotificationDelete:  {Fallback: resilience.FallbackMock},
		OpNotificationSetting: {Fallback: resilience.FallbackMock},
		OpAccountPassword:     {Fallback: resilience.FallbackNone},
		OpAccountMSV:          {Fallback: resilience.FallbackNone},
		OpAccountAvatar:       {Fallback: resilience.FallbackNone},
	}
}

func classifyBackendError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:   false,
			Unreachable: true,
		}
	}
	if domain.IsKind(err, domain.ErrNetwork) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
			Unreachable:   true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// wrapNetworkIfNeeded makes an open breaker look like an unreachable
// backend to callers.
func wrapNetworkIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) && !domain.IsKind(err, domain.ErrNetwork) {
		return domain.WrapError(domain.ErrNetwork, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// call runs req under the operation's policy and decodes the response.
func call[T any](ctx context.Context, c *Client, req Request, fallback resilience.Fallback[T]) (T, domain.DataSource, error) {
	policy := c.policies.For(req.Operation)
	v, source, err := resilience.Serve(ctx, c.exec, policy, func(ctx context.Context) (T, error) {
		var out T
		raw, err := c.doJSON(ctx, req, &out)
		if err != nil {
			return out, err
		}
		if policy.Fallback == resilience.FallbackCached {
			c.store.SaveCachedResponse(req.Operation, raw)
		}
		return out, nil
	}, classifyBackendError, fallback)
	return v, source, wrapNetworkIfNeeded(req.Operation, err)
}

// cachedFallback decodes the last good response stored for operation.
func cachedFallback[T any](c *Client, operation string) resilience.Fallback[T] {
	return resilience.Fallback[T]{
		Cached: func() (T, bool) {
			var out T
			raw, ok := c.store.CachedResponse(operation)
			if !ok {
				return out, false
			}
			if err := json.Unmarshal(raw, &out); err != nil {
				c.logger.Warn("cached_response_decode_failed", "operation", operation, "error", err)
				return out, false
			}
			return out, true
		},
	}
}

func mockFallback[T any](fn func() T) resilience.Fallback[T] {
	return resilience.Fallback[T]{Mock: fn}
}

func noFallback[T any]() resilience.Fallback[T] {
	return resilience.Fallback[T]{}
}
