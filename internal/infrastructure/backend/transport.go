package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// Request describes one backend call. At most one of JSON, Form or File
// is set.
type Request struct {
	Operation string
	Method    string
	Path      string
	JSON      any
	Form      url.Values
	File      *FilePart
}

type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Detail     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "backend status error"
	}
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("backend %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("backend %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Detail))
}

// Do sends req to the resolved base URL and returns the raw response body.
// Non-2xx responses come back as *HTTPStatusError wrapped in a domain error
// kind; failures without any response are wrapped as domain.ErrNetwork.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Operation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.ResolveBaseURL()+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.Operation, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	if token := c.store.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("backend %s request: %w", req.Operation, ctxErr)
		}
		return nil, domain.WrapError(domain.ErrNetwork, req.Operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, statusError(req.Operation, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetwork, req.Operation, fmt.Errorf("read response: %w", err))
	}
	return raw, nil
}

// doJSON runs Do and decodes a JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, req Request, out any) ([]byte, error) {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.Operation, err)
	}
	return raw, nil
}

func encodeBody(req Request) (io.Reader, string, error) {
	switch {
	case req.File != nil:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		field := req.File.Field
		if field == "" {
			field = "file"
		}
		part, err := w.CreateFormFile(field, req.File.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(req.File.Content); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	case req.Form != nil:
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(raw), "application/json", nil
	default:
		return nil, "", nil
	}
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Detail:     extractDetail(body),
	}

	if kind := domain.KindForStatus(resp.StatusCode); kind != nil {
		return domain.WrapError(kind, operation, statusErr)
	}
	return statusErr
}

// extractDetail pulls the backend's "detail" message out of an error body.
// FastAPI validation errors carry a list of {msg} objects instead of a
// string.
func extractDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return string(trimmed)
	}
	if len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		return string(payload.Detail)
	}
	if payload.Message != "" {
		return payload.Message
	}
	return string(trimmed)
}

// StatusDetail returns the backend-provided detail text of err, if any.
func StatusDetail(err error) (string, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.Detail != "" {
		return statusErr.Detail, true
	}
	return "", false
}
