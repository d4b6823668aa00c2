package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// Runner is the part of the check orchestrator the live view drives.
type Runner interface {
	Start(ctx context.Context, scope domain.ResultType) (string, error)
	Snapshot() domain.CheckSnapshot
	Subscribe(fn func(domain.CheckUpdate)) func()
}

const visibleLogLines = 12

// Model renders one check run as it progresses.
type Model struct {
	ctx    context.Context
	runner Runner
	scope  domain.ResultType
	watch  *watcher

	snapshot domain.CheckSnapshot
	startErr error
	width    int
	quitting bool
}

func NewModel(ctx context.Context, runner Runner, scope domain.ResultType) Model {
	return Model{
		ctx:      ctx,
		runner:   runner,
		scope:    scope,
		watch:    newWatcher(runner),
		snapshot: runner.Snapshot(),
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(startRun(m.ctx, m.runner, m.scope), m.watch.next())
}

// Snapshot is the last state the view rendered.
func (m Model) Snapshot() domain.CheckSnapshot {
	return m.snapshot
}

func (m Model) Err() error {
	if m.startErr != nil {
		return m.startErr
	}
	return m.snapshot.Err
}

// watcher keeps only the latest snapshot so a slow terminal never blocks
// the orchestrator and the terminal state is never dropped.
type watcher struct {
	mu        sync.Mutex
	latest    domain.CheckSnapshot
	pending   bool
	notify    chan struct{}
	stop      func()
	closeOnce sync.Once
}

func newWatcher(runner Runner) *watcher {
	w := &watcher{notify: make(chan struct{}, 1)}
	w.stop = runner.Subscribe(func(u domain.CheckUpdate) {
		w.mu.Lock()
		w.latest = u.Snapshot
		w.pending = true
		w.mu.Unlock()
		select {
		case w.notify <- struct{}{}:
		default:
		}
	})
	return w
}

func (w *watcher) next() tea.Cmd {
	return func() tea.Msg {
		for range w.notify {
			w.mu.Lock()
			snap, ok := w.latest, w.pending
			w.pending = false
			w.mu.Unlock()
			if ok {
				return snapshotMsg{snapshot: snap}
			}
		}
		return nil
	}
}

// close unsubscribes first so no callback can send on the closed channel.
func (w *watcher) close() {
	w.closeOnce.Do(func() {
		w.stop()
		close(w.notify)
	})
}

func startRun(ctx context.Context, runner Runner, scope domain.ResultType) tea.Cmd {
	return func() tea.Msg {
		id, err := runner.Start(ctx, scope)
		return startedMsg{runID: id, err: err}
	}
}
