package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

type DocumentsUseCase struct {
	api       ports.DocumentAPI
	store     ports.ClientStore
	inspector ports.DocumentInspector
	auth      *AuthUseCase
	logger    *slog.Logger
}

func NewDocumentsUseCase(
	api ports.DocumentAPI,
	store ports.ClientStore,
	inspector ports.DocumentInspector,
	auth *AuthUseCase,
	logger *slog.Logger,
) *DocumentsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsUseCase{api: api, store: store, inspector: inspector, auth: auth, logger: logger}
}

func (uc *DocumentsUseCase) List(ctx context.Context) (domain.Fetched[[]domain.Document], error) {
	docs, err := uc.api.ListDocuments(ctx)
	if err != nil {
		return docs, uc.auth.HandleError(err)
	}
	if docs.Degraded() {
		uc.logger.Warn("documents_served_from_fallback", "source", docs.Source, "count", len(docs.Value))
	}
	return docs, nil
}

// Upload inspects a local PDF and sends it to the backend.
func (uc *DocumentsUseCase) Upload(ctx context.Context, path string) (*domain.UploadedDocument, domain.FileInfo, error) {
	if err := uc.auth.Authorize(domain.ActionUpload); err != nil {
		return nil, domain.FileInfo{}, err
	}
	info, err := uc.inspector.Inspect(path)
	if err != nil {
		return nil, domain.FileInfo{}, err
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, info, fmt.Errorf("open %s: %w", info.Path, err)
	}
	defer f.Close()

	uploaded, err := uc.api.UploadDocument(ctx, info.Name, f)
	if err != nil {
		return nil, info, uc.auth.HandleError(err)
	}
	uc.logger.Info("document_uploaded", "filename", uploaded.Filename, "id", uploaded.ID, "pages", info.Pages, "bytes", info.Size)
	return uploaded, info, nil
}

// Delete removes a document on the backend and drops it from the queue.
func (uc *DocumentsUseCase) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.WrapError(domain.ErrInvalidInput, "documents.delete", fmt.Errorf("document id is required"))
	}
	if err := uc.auth.Authorize(domain.ActionDeleteDocument); err != nil {
		return err
	}
	if err := uc.api.DeleteDocument(ctx, id); err != nil {
		return uc.auth.HandleError(err)
	}
	uc.store.RemoveFromQueue(id)
	uc.logger.Info("document_deleted", "id", id)
	return nil
}
