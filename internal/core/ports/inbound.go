package ports

import (
	"context"
	"io"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// QueueService curates the persisted check queue.
type QueueService interface {
	List() []domain.QueueEntry
	Add(ctx context.Context, ids ...string) ([]domain.QueueEntry, error)
	Remove(id string) []domain.QueueEntry
	Clear()
}

// CheckRunner drives one check at a time from start to a terminal state.
type CheckRunner interface {
	State() domain.CheckState
	Start(ctx context.Context, scope domain.ResultType) (string, error)
	Wait(ctx context.Context) (domain.CheckSnapshot, error)
	Snapshot() domain.CheckSnapshot
	Subscribe(fn func(domain.CheckUpdate)) func()
	Close()
}

// ResultReader exposes the last persisted check result.
type ResultReader interface {
	Current() (*domain.CheckResult, domain.ResultType)
	LastRunCompleted() bool
	Clear()
	Export(w io.Writer) error
}
