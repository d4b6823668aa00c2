package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

func (c *Client) ListDocuments(ctx context.Context) (domain.Fetched[[]domain.Document], error) {
	docs, source, err := call(ctx, c, Request{
		Operation: OpDocumentsList,
		Method:    http.MethodGet,
		Path:      "/get_all_pdf_metadata",
	}, cachedFallback[[]domain.Document](c, OpDocumentsList))
	if err != nil {
		return domain.Fetched[[]domain.Document]{}, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return domain.Fetched[[]domain.Document]{Value: docs, Source: source}, nil
}

func (c *Client) UploadDocument(ctx context.Context, filename string, body io.Reader) (*domain.UploadedDocument, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", filename, err)
	}
	uploaded, _, err := call(ctx, c, Request{
		Operation: OpDocumentsUpload,
		Method:    http.MethodPost,
		Path:      "/upload_pdf",
		File:      &FilePart{Field: "file", Filename: filename, Content: content},
	}, noFallback[domain.UploadedDocument]())
	if err != nil {
		return nil, err
	}
	if uploaded.Filename == "" {
		uploaded.Filename = filename
	}
	return &uploaded, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	_, _, err := call(ctx, c, Request{
		Operation: OpDocumentsDelete,
		Method:    http.MethodDelete,
		Path:      "/documents/" + url.PathEscape(id),
	}, noFallback[json.RawMessage]())
	return err
}
