package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
	"github.com/kirillkom/plagctl/internal/infrastructure/clientstore"
	"github.com/kirillkom/plagctl/internal/infrastructure/storage/memory"
)

type fakeFeed struct {
	mu      sync.Mutex
	handler func(domain.FeedEvent)
	openErr error
	opened  chan struct{}
	closed  bool
}

func (f *fakeFeed) OnEvent(h func(domain.FeedEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeFeed) Open(context.Context) error {
	defer close(f.opened)
	if f.openErr != nil {
		f.emit(domain.FeedEvent{Kind: domain.FeedError, Err: f.openErr})
		return f.openErr
	}
	return nil
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeFeed) emit(ev domain.FeedEvent) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

func (f *fakeFeed) line(seq int, text string) {
	f.emit(domain.FeedEvent{
		Kind:     domain.FeedMessage,
		Progress: domain.NewProgressEvent(seq, text, domain.DefaultMarkers(), time.Now()),
	})
}

type fakeFeedFactory struct {
	mu      sync.Mutex
	openErr error
	feeds   []*fakeFeed
}

func (f *fakeFeedFactory) NewFeed() ports.ProgressFeed {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed := &fakeFeed{openErr: f.openErr, opened: make(chan struct{})}
	f.feeds = append(f.feeds, feed)
	return feed
}

func (f *fakeFeedFactory) last() *fakeFeed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds[len(f.feeds)-1]
}

type apiResponse struct {
	result *domain.CheckResult
	err    error
}

type fakeDetectionAPI struct {
	mu        sync.Mutex
	respond   chan apiResponse
	filenames []string
	allCalls  int
}

func newFakeDetectionAPI() *fakeDetectionAPI {
	return &fakeDetectionAPI{respond: make(chan apiResponse, 1)}
}

func (f *fakeDetectionAPI) CheckByNames(_ context.Context, filenames []string) (*domain.CheckResult, error) {
	f.mu.Lock()
	f.filenames = append([]string(nil), filenames...)
	f.mu.Unlock()
	resp := <-f.respond
	return resp.result, resp.err
}

func (f *fakeDetectionAPI) CheckAll(context.Context) (*domain.CheckResult, error) {
	f.mu.Lock()
	f.allCalls++
	f.mu.Unlock()
	resp := <-f.respond
	return resp.result, resp.err
}

func (f *fakeDetectionAPI) ComparePair(context.Context, string, string) (*domain.PairComparison, error) {
	return nil, errors.New("not used")
}

type recordingMetrics struct {
	mu   sync.Mutex
	runs []string
}

func (m *recordingMetrics) RecordFeedEvent(string) {}
func (m *recordingMetrics) RecordCheckRun(scope, status string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, scope+":"+status)
}

type checkFixture struct {
	store   *clientstore.Store
	api     *fakeDetectionAPI
	feeds   *fakeFeedFactory
	metrics *recordingMetrics
	orch    *CheckOrchestrator
}

func newCheckFixture(t *testing.T, grace time.Duration, queued ...string) *checkFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := clientstore.New(memory.New(), logger)
	for _, name := range queued {
		store.AddToQueue(domain.QueueEntry{ID: "id-" + name, Filename: name})
	}
	f := &checkFixture{
		store:   store,
		api:     newFakeDetectionAPI(),
		feeds:   &fakeFeedFactory{},
		metrics: &recordingMetrics{},
	}
	f.orch = NewCheckOrchestrator(store, f.api, f.feeds, CheckOptions{
		GracePeriod: grace,
		Metrics:     f.metrics,
		Logger:      logger,
	})
	t.Cleanup(f.orch.Close)
	return f
}

func sampleCheckResult() *domain.CheckResult {
	return &domain.CheckResult{
		DocumentCount: 2,
		Pairs: []domain.PairRecord{
			{Doc1Filename: "a.pdf", Doc2Filename: "b.pdf", BERT: domain.Score(82), FinalResult: true},
		},
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func (f *checkFixture) state() domain.CheckState {
	return f.orch.Snapshot().State
}

func TestCheckStateReflectsQueue(t *testing.T) {
	f := newCheckFixture(t, time.Second)
	if f.orch.State() != domain.CheckQueueEmpty {
		t.Fatalf("expected queue_empty, got %s", f.orch.State())
	}
	f.store.AddToQueue(domain.QueueEntry{ID: "1", Filename: "a.pdf"})
	if f.orch.State() != domain.CheckReady {
		t.Fatalf("expected ready, got %s", f.orch.State())
	}
}

func TestCheckStartRejectsEmptyQueue(t *testing.T) {
	f := newCheckFixture(t, time.Second)
	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); !errors.Is(err, domain.ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestCheckCompletesOnlyAfterHTTPAndMarker(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf", "b.pdf")

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	feed := f.feeds.last()
	feed.line(1, domain.DefaultStartMarker)
	feed.line(2, "Layer 1: Đang xử lý (40%)")

	f.api.respond <- apiResponse{result: sampleCheckResult()}
	eventually(t, func() bool {
		f.api.mu.Lock()
		defer f.api.mu.Unlock()
		return len(f.api.filenames) == 2
	}, "check-by-names issued")
	time.Sleep(20 * time.Millisecond)

	if got := f.state(); got != domain.CheckRunning {
		t.Fatalf("expected running while feed has not completed, got %s", got)
	}
	if f.store.GetResult() != nil {
		t.Fatalf("nothing should be persisted before completion")
	}

	feed.line(3, domain.DefaultCompleteMarker)
	snap, err := f.orch.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != domain.CheckCompleted || snap.Result == nil {
		t.Fatalf("expected completed with result, got %+v", snap)
	}
	if len(snap.Log) != 3 || snap.Log[0].Seq != 1 || snap.Log[2].Seq != 3 {
		t.Fatalf("unexpected log: %+v", snap.Log)
	}

	if f.store.GetResult() == nil || f.store.GetResultType() != domain.ResultQueue {
		t.Fatalf("expected queue-scoped result persisted")
	}
	if len(f.store.GetQueue()) != 0 {
		t.Fatalf("expected queue consumed by a completed queue run")
	}
	if !f.store.LastRunCompleted() {
		t.Fatalf("expected completion breadcrumb")
	}
	eventually(t, feed.isClosed, "feed closed after completion")
}

func TestCheckMarkerBeforeHTTPCompletesOnHTTP(t *testing.T) {
	f := newCheckFixture(t, time.Minute)

	if _, err := f.orch.Start(context.Background(), domain.ResultAll); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	feed := f.feeds.last()
	feed.line(1, domain.DefaultCompleteMarker)
	if got := f.state(); got != domain.CheckRunning {
		t.Fatalf("expected running until HTTP resolves, got %s", got)
	}

	f.api.respond <- apiResponse{result: sampleCheckResult()}
	snap, _ := f.orch.Wait(context.Background())
	if snap.State != domain.CheckCompleted {
		t.Fatalf("expected completed, got %s", snap.State)
	}
	if f.store.GetResultType() != domain.ResultAll {
		t.Fatalf("expected all-scoped result, got %s", f.store.GetResultType())
	}
}

func TestCheckAllKeepsQueue(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")

	if _, err := f.orch.Start(context.Background(), domain.ResultAll); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.feeds.last().line(1, domain.DefaultCompleteMarker)
	f.api.respond <- apiResponse{result: sampleCheckResult()}
	if _, err := f.orch.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(f.store.GetQueue()) != 1 {
		t.Fatalf("a corpus-wide run must not consume the queue")
	}
}

func TestCheckHTTPRejectionFailsRegardlessOfFeed(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")
	before := sampleCheckResult()
	f.store.SaveResult(*before, domain.ResultAll)

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	feed := f.feeds.last()
	feed.line(1, domain.DefaultStartMarker)
	feed.line(2, domain.DefaultCompleteMarker)

	rejected := domain.WrapError(domain.ErrValidation, "check.by_names", errors.New("422"))
	f.api.respond <- apiResponse{err: rejected}
	snap, _ := f.orch.Wait(context.Background())

	if snap.State != domain.CheckFailed || !errors.Is(snap.Err, domain.ErrValidation) {
		t.Fatalf("expected failed with validation error, got %s %v", snap.State, snap.Err)
	}
	if len(snap.Log) != 2 {
		t.Fatalf("expected log preserved, got %+v", snap.Log)
	}
	if f.store.GetResultType() != domain.ResultAll || len(f.store.GetQueue()) != 1 {
		t.Fatalf("a failed run must not persist anything")
	}
	if snap.Result != nil {
		t.Fatalf("failed run exposes no result")
	}
}

func TestCheckFeedErrorIsWarningOnly(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	feed := f.feeds.last()
	feed.line(1, "Layer 1: Đang xử lý (10%)")
	feed.emit(domain.FeedEvent{Kind: domain.FeedError, Err: domain.ErrNetwork})

	snap := f.orch.Snapshot()
	if snap.State != domain.CheckRunning {
		t.Fatalf("feed error must not fail the run, got %s", snap.State)
	}
	if len(snap.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", snap.Warnings)
	}

	f.api.respond <- apiResponse{result: sampleCheckResult()}
	snap, _ = f.orch.Wait(context.Background())
	if snap.State != domain.CheckCompleted {
		t.Fatalf("expected HTTP success to complete the run, got %s", snap.State)
	}
}

func TestCheckUnavailableFeedCompletesOnHTTP(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")
	f.feeds.openErr = domain.WrapError(domain.ErrNetwork, "feed.dial", errors.New("refused"))

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-f.feeds.last().opened

	f.api.respond <- apiResponse{result: sampleCheckResult()}
	snap, _ := f.orch.Wait(context.Background())
	if snap.State != domain.CheckCompleted || len(snap.Warnings) == 0 {
		t.Fatalf("expected completion with a warning, got %s %v", snap.State, snap.Warnings)
	}
}

func TestCheckGracePeriodCompletesSilentFeed(t *testing.T) {
	f := newCheckFixture(t, 20*time.Millisecond, "a.pdf")

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.api.respond <- apiResponse{result: sampleCheckResult()}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := f.orch.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != domain.CheckCompleted || len(snap.Warnings) != 1 {
		t.Fatalf("expected grace completion with warning, got %s %v", snap.State, snap.Warnings)
	}
}

func TestCheckRejectsConcurrentStart(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")

	first, err := f.orch.Start(context.Background(), domain.ResultQueue)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.orch.Start(context.Background(), domain.ResultAll); !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if f.orch.Snapshot().RunID != first {
		t.Fatalf("second start must not replace the running run")
	}

	f.feeds.last().line(1, domain.DefaultCompleteMarker)
	f.api.respond <- apiResponse{result: sampleCheckResult()}
	if _, err := f.orch.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	f.store.AddToQueue(domain.QueueEntry{ID: "2", Filename: "c.pdf"})
	second, err := f.orch.Start(context.Background(), domain.ResultQueue)
	if err != nil || second == first {
		t.Fatalf("expected a fresh run after completion, got %q %v", second, err)
	}
	f.orch.Close()
	f.api.respond <- apiResponse{err: errors.New("late")}
}

func TestCheckTeardownDiscardsLateResult(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	feed := f.feeds.last()
	feed.line(1, domain.DefaultCompleteMarker)
	f.orch.Close()

	if _, err := f.orch.Wait(context.Background()); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed, got %v", err)
	}
	if !feed.isClosed() {
		t.Fatalf("expected feed closed on teardown")
	}

	f.api.respond <- apiResponse{result: sampleCheckResult()}
	time.Sleep(30 * time.Millisecond)

	if f.store.GetResult() != nil || len(f.store.GetQueue()) != 1 {
		t.Fatalf("a torn-down orchestrator must not persist a late result")
	}
	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected closed orchestrator to reject start, got %v", err)
	}
}

func TestCheckSubscribersSeeOrderedUpdates(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")

	var (
		mu     sync.Mutex
		seqs   []int
		states []domain.CheckState
	)
	unsubscribe := f.orch.Subscribe(func(u domain.CheckUpdate) {
		mu.Lock()
		defer mu.Unlock()
		if u.Event != nil {
			seqs = append(seqs, u.Event.Seq)
		}
		states = append(states, u.Snapshot.State)
	})
	defer unsubscribe()

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	feed := f.feeds.last()
	for i, line := range []string{domain.DefaultStartMarker, "Layer 1: 50%", "Layer 2: 50%", domain.DefaultCompleteMarker} {
		feed.line(i+1, line)
	}
	f.api.respond <- apiResponse{result: sampleCheckResult()}
	if _, err := f.orch.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range seqs {
		if seq != i+1 {
			t.Fatalf("updates out of order: %v", seqs)
		}
	}
	if states[0] != domain.CheckRunning || states[len(states)-1] != domain.CheckCompleted {
		t.Fatalf("unexpected state sequence: %v", states)
	}

	f.metrics.mu.Lock()
	defer f.metrics.mu.Unlock()
	if len(f.metrics.runs) != 1 || f.metrics.runs[0] != "queue:completed" {
		t.Fatalf("unexpected run metrics: %v", f.metrics.runs)
	}
}

func TestCheckImmediateRejectionFailsWithoutFeed(t *testing.T) {
	f := newCheckFixture(t, time.Minute, "a.pdf")
	f.api.respond <- apiResponse{err: domain.WrapError(domain.ErrNetwork, "check.by_names", errors.New("offline"))}

	if _, err := f.orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := f.orch.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != domain.CheckFailed || len(snap.Log) != 0 {
		t.Fatalf("expected immediate failure with empty log, got %s %+v", snap.State, snap.Log)
	}
	if f.orch.State() != domain.CheckFailed {
		t.Fatalf("expected failed state, got %s", f.orch.State())
	}
}

func TestCheckUnauthorizedClearsSession(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := clientstore.New(memory.New(), logger)
	store.SetToken("expired-token")
	store.SetUser(domain.User{Username: "alice", Role: domain.RoleTeacher})
	store.AddToQueue(domain.QueueEntry{ID: "1", Filename: "a.pdf"})

	api := newFakeDetectionAPI()
	api.respond <- apiResponse{err: domain.WrapError(domain.ErrUnauthorized, "check.by_names", errors.New("token expired"))}
	orch := NewCheckOrchestrator(store, api, &fakeFeedFactory{}, CheckOptions{
		GracePeriod: time.Minute,
		Session:     NewAuthUseCase(&fakeAuthAPI{}, store, logger),
		Logger:      logger,
	})
	defer orch.Close()

	if _, err := orch.Start(context.Background(), domain.ResultQueue); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := orch.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != domain.CheckFailed || !domain.IsKind(snap.Err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized failure, got %s %v", snap.State, snap.Err)
	}
	if store.Token() != "" || store.Role() != "" || store.User() != nil {
		t.Fatalf("expected session cleared, token=%q role=%q", store.Token(), store.Role())
	}
	if len(store.GetQueue()) != 1 {
		t.Fatalf("a failed run must keep the queue")
	}
}
