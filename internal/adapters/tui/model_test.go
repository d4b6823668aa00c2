package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

type fakeRunner struct {
	mu       sync.Mutex
	subs     map[int]func(domain.CheckUpdate)
	next     int
	startErr error
	started  domain.ResultType
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{subs: map[int]func(domain.CheckUpdate){}}
}

func (f *fakeRunner) Start(_ context.Context, scope domain.ResultType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = scope
	return "run-1", f.startErr
}

func (f *fakeRunner) Snapshot() domain.CheckSnapshot {
	return domain.CheckSnapshot{State: domain.CheckReady}
}

func (f *fakeRunner) Subscribe(fn func(domain.CheckUpdate)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeRunner) publish(snap domain.CheckSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.subs {
		fn(domain.CheckUpdate{Snapshot: snap})
	}
}

func (f *fakeRunner) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelRendersProgressAndQuitsOnCompletion(t *testing.T) {
	runner := newFakeRunner()
	m := NewModel(context.Background(), runner, domain.ResultQueue)

	running := domain.CheckSnapshot{
		State: domain.CheckRunning,
		Log: []domain.ProgressEvent{
			{Seq: 1, Text: domain.DefaultStartMarker, Kind: domain.ProgressStarted},
			{Seq: 2, Text: "Layer 1: 50%", Kind: domain.ProgressStatus, Layer: 1, Percent: 50},
		},
		Warnings: []string{"progress feed unavailable"},
		Progress: 0.5 / 3,
	}
	runner.publish(running)
	msg := m.watch.next()()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if isQuit(cmd) {
		t.Fatalf("running state must not quit")
	}
	view := m.View()
	for _, want := range []string{"Layer 1: 50%", "running (2 lines received)", "progress feed unavailable", "press q"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	done := domain.CheckSnapshot{
		State: domain.CheckCompleted,
		Log:   running.Log,
		Result: &domain.CheckResult{
			DocumentCount: 2,
			Pairs: []domain.PairRecord{
				{Doc1Filename: "a.pdf", Doc2Filename: "b.pdf", BERT: domain.Score(88), FinalResult: true},
			},
		},
		Progress: 1,
	}
	updated, cmd = m.Update(snapshotMsg{snapshot: done})
	m = updated.(Model)
	if !isQuit(cmd) {
		t.Fatalf("terminal state should quit")
	}
	view = m.View()
	if !strings.Contains(view, "completed") || !strings.Contains(view, "a.pdf / b.pdf") || !strings.Contains(view, "Plagiarism: 1") {
		t.Fatalf("unexpected final view:\n%s", view)
	}
	if runner.subscribers() != 0 {
		t.Fatalf("watcher should unsubscribe on terminal state")
	}
	if m.Err() != nil {
		t.Fatalf("unexpected error %v", m.Err())
	}
}

func TestModelReportsStartError(t *testing.T) {
	runner := newFakeRunner()
	runner.startErr = domain.WrapError(domain.ErrEmptyQueue, "check.start", errors.New("no documents queued"))
	m := NewModel(context.Background(), runner, domain.ResultQueue)

	msg := startRun(context.Background(), runner, domain.ResultQueue)()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if !isQuit(cmd) {
		t.Fatalf("start error should quit")
	}
	if !domain.IsKind(m.Err(), domain.ErrEmptyQueue) {
		t.Fatalf("expected empty queue error, got %v", m.Err())
	}
	if !strings.Contains(m.View(), "could not start") {
		t.Fatalf("view should explain the failure:\n%s", m.View())
	}
}

func TestModelQuitKeyUnsubscribes(t *testing.T) {
	runner := newFakeRunner()
	m := NewModel(context.Background(), runner, domain.ResultAll)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Fatalf("q should quit")
	}
	if runner.subscribers() != 0 {
		t.Fatalf("quit should unsubscribe")
	}
	if msg := m.watch.next()(); msg != nil {
		t.Fatalf("closed watcher should yield no message, got %#v", msg)
	}
}

func TestProgressBarClamps(t *testing.T) {
	if got := progressBar(2, 10); !strings.Contains(got, "100%") {
		t.Fatalf("expected clamp to 100%%, got %q", got)
	}
	if got := progressBar(-1, 10); !strings.Contains(got, "  0%") {
		t.Fatalf("expected clamp to 0%%, got %q", got)
	}
}
