package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

type QueueUseCase struct {
	store ports.ClientStore
	docs  *DocumentsUseCase
}

func NewQueueUseCase(store ports.ClientStore, docs *DocumentsUseCase) *QueueUseCase {
	return &QueueUseCase{store: store, docs: docs}
}

func (uc *QueueUseCase) List() []domain.QueueEntry {
	return uc.store.GetQueue()
}

// Add looks each reference up in the document listing, by id or filename,
// and queues the listing objects as they are.
func (uc *QueueUseCase) Add(ctx context.Context, refs ...string) ([]domain.QueueEntry, error) {
	if len(refs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "queue.add", fmt.Errorf("at least one document is required"))
	}
	listing, err := uc.docs.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.QueueEntry, 0, len(refs))
	var missing []string
	for _, ref := range refs {
		doc, ok := findDocument(listing.Value, ref)
		if !ok {
			missing = append(missing, ref)
			continue
		}
		entries = append(entries, doc.QueueEntry())
	}
	if len(missing) > 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "queue.add", fmt.Errorf("unknown documents: %s", strings.Join(missing, ", ")))
	}
	return uc.store.AddToQueue(entries...), nil
}

func (uc *QueueUseCase) Remove(id string) []domain.QueueEntry {
	for _, entry := range uc.store.GetQueue() {
		if entry.ID == id || strings.EqualFold(entry.Filename, id) {
			return uc.store.RemoveFromQueue(entry.ID)
		}
	}
	return uc.store.GetQueue()
}

func (uc *QueueUseCase) Clear() {
	uc.store.ClearQueue()
}

func findDocument(docs []domain.Document, ref string) (domain.Document, bool) {
	ref = strings.TrimSpace(ref)
	for _, d := range docs {
		if d.ID == ref {
			return d, true
		}
	}
	for _, d := range docs {
		if strings.EqualFold(d.Filename, ref) {
			return d, true
		}
	}
	return domain.Document{}, false
}
