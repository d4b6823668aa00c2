package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// CheckByNames runs the layered detection over the given filenames. The call
// blocks for the whole backend job, which can take minutes.
func (c *Client) CheckByNames(ctx context.Context, filenames []string) (*domain.CheckResult, error) {
	if filenames == nil {
		filenames = []string{}
	}
	result, _, err := call(ctx, c, Request{
		Operation: OpCheckByNames,
		Method:    http.MethodPost,
		Path:      "/auto-layered-detection-by-names",
		JSON:      map[string]any{"filenames": filenames},
	}, noFallback[domain.CheckResult]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CheckAll(ctx context.Context) (*domain.CheckResult, error) {
	result, _, err := call(ctx, c, Request{
		Operation: OpCheckAll,
		Method:    http.MethodGet,
		Path:      "/auto-layered-detection-debug",
	}, noFallback[domain.CheckResult]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ComparePair(ctx context.Context, file1, file2 string) (*domain.PairComparison, error) {
	raw, _, err := call(ctx, c, Request{
		Operation: OpComparePair,
		Method:    http.MethodPost,
		Path:      "/compare-pdfs-by-name",
		JSON:      map[string]string{"file1_name": file1, "file2_name": file2},
	}, noFallback[json.RawMessage]())
	if err != nil {
		return nil, err
	}

	var out domain.PairComparison
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.PairRecord); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, OpComparePair, err)
		}
		_ = json.Unmarshal(raw, &out.Details)
	}
	if out.Doc1Filename == "" {
		out.Doc1Filename = file1
	}
	if out.Doc2Filename == "" {
		out.Doc2Filename = file2
	}
	return &out, nil
}
