package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

const DefaultFeedGracePeriod = 30 * time.Second

var ErrOrchestratorClosed = errors.New("check orchestrator closed")

// SessionErrorHandler reacts to backend errors that invalidate the session.
type SessionErrorHandler interface {
	HandleError(err error) error
}

type CheckOptions struct {
	// GracePeriod bounds how long a successful HTTP result waits for the
	// feed's completion marker while the feed is still open.
	GracePeriod time.Duration
	Metrics     ports.CheckMetrics
	Session     SessionErrorHandler
	Logger      *slog.Logger
}

// CheckOrchestrator runs one detection at a time. The triggering HTTP call
// and the progress feed race freely; a run completes once the HTTP call
// succeeded and the feed either reported completion or went away.
type CheckOrchestrator struct {
	store   ports.ClientStore
	api     ports.DetectionAPI
	feeds   ports.ProgressFeedFactory
	metrics ports.CheckMetrics
	session SessionErrorHandler
	grace   time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	run         *checkRun
	closed      bool
	subscribers map[int]func(domain.CheckUpdate)
	nextSubID   int
}

type checkRun struct {
	id         string
	scope      domain.ResultType
	state      domain.CheckState
	log        []domain.ProgressEvent
	warnings   []string
	result     *domain.CheckResult
	err        error
	startedAt  time.Time
	finishedAt time.Time

	httpDone        bool
	feedComplete    bool
	feedUnavailable bool

	feed       ports.ProgressFeed
	cancelFeed context.CancelFunc
	grace      *time.Timer
	done       chan struct{}
}

func NewCheckOrchestrator(
	store ports.ClientStore,
	api ports.DetectionAPI,
	feeds ports.ProgressFeedFactory,
	opts CheckOptions,
) *CheckOrchestrator {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultFeedGracePeriod
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopCheckMetrics{}
	}
	return &CheckOrchestrator{
		store:       store,
		api:         api,
		feeds:       feeds,
		metrics:     metrics,
		session:     opts.Session,
		grace:       grace,
		logger:      logger,
		subscribers: make(map[int]func(domain.CheckUpdate)),
	}
}

func (o *CheckOrchestrator) State() domain.CheckState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *CheckOrchestrator) stateLocked() domain.CheckState {
	if o.run != nil && (o.run.state == domain.CheckRunning || o.run.state.Terminal()) {
		return o.run.state
	}
	if len(o.store.GetQueue()) == 0 {
		return domain.CheckQueueEmpty
	}
	return domain.CheckReady
}

// Start begins a run over the queue or the whole corpus and returns its id.
func (o *CheckOrchestrator) Start(ctx context.Context, scope domain.ResultType) (string, error) {
	if scope != domain.ResultQueue {
		scope = domain.ResultAll
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrOrchestratorClosed
	}
	if o.run != nil && o.run.state == domain.CheckRunning {
		o.mu.Unlock()
		return "", domain.WrapError(domain.ErrRunInProgress, "check.start", fmt.Errorf("run %s", o.run.id))
	}

	var filenames []string
	if scope == domain.ResultQueue {
		for _, entry := range o.store.GetQueue() {
			filenames = append(filenames, entry.Filename)
		}
		if len(filenames) == 0 {
			o.mu.Unlock()
			return "", domain.ErrEmptyQueue
		}
	}

	feedCtx, cancelFeed := context.WithCancel(context.WithoutCancel(ctx))
	run := &checkRun{
		id:         uuid.NewString(),
		scope:      scope,
		state:      domain.CheckRunning,
		log:        []domain.ProgressEvent{},
		startedAt:  time.Now(),
		feed:       o.feeds.NewFeed(),
		cancelFeed: cancelFeed,
		done:       make(chan struct{}),
	}
	run.feed.OnEvent(func(ev domain.FeedEvent) { o.onFeedEvent(run, ev) })
	o.run = run
	o.logger.Info("check_started", "run_id", run.id, "scope", scope, "documents", len(filenames))
	o.notifyLocked(nil)
	o.mu.Unlock()

	go func() {
		if err := run.feed.Open(feedCtx); err != nil {
			o.logger.Debug("check_feed_open_failed", "run_id", run.id, "error", err)
		}
	}()

	// The HTTP call is never cancelled once issued; a stale run simply
	// discards its outcome.
	httpCtx := context.WithoutCancel(ctx)
	go func() {
		var (
			result *domain.CheckResult
			err    error
		)
		if scope == domain.ResultQueue {
			result, err = o.api.CheckByNames(httpCtx, filenames)
		} else {
			result, err = o.api.CheckAll(httpCtx)
		}
		o.onHTTPResult(run, result, err)
	}()

	return run.id, nil
}

// Wait blocks until the current run reaches a terminal state, the
// orchestrator is closed, or ctx is done.
func (o *CheckOrchestrator) Wait(ctx context.Context) (domain.CheckSnapshot, error) {
	o.mu.Lock()
	run := o.run
	o.mu.Unlock()
	if run == nil {
		return o.Snapshot(), nil
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}

	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	snap := o.Snapshot()
	if closed && snap.State == domain.CheckRunning {
		return snap, ErrOrchestratorClosed
	}
	return snap, nil
}

func (o *CheckOrchestrator) Snapshot() domain.CheckSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *CheckOrchestrator) snapshotLocked() domain.CheckSnapshot {
	if o.run == nil {
		return domain.CheckSnapshot{State: o.stateLocked(), Log: []domain.ProgressEvent{}}
	}
	r := o.run
	return domain.CheckSnapshot{
		RunID:      r.id,
		State:      r.state,
		Scope:      r.scope,
		Log:        append([]domain.ProgressEvent{}, r.log...),
		Warnings:   append([]string(nil), r.warnings...),
		Progress:   domain.OverallProgress(r.log),
		Result:     r.completedResult(),
		Err:        r.err,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
}

func (r *checkRun) completedResult() *domain.CheckResult {
	if r.state != domain.CheckCompleted {
		return nil
	}
	return r.result
}

// Subscribe registers fn for every state change. fn runs while the
// orchestrator lock is held and must not call back into it.
func (o *CheckOrchestrator) Subscribe(fn func(domain.CheckUpdate)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, id)
	}
}

// Close tears the orchestrator down. An in-flight HTTP call keeps running
// but its outcome is ignored.
func (o *CheckOrchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	run := o.run
	var feed ports.ProgressFeed
	if run != nil && run.state == domain.CheckRunning {
		feed = run.feed
		run.stopGrace()
		close(run.done)
		o.logger.Info("check_abandoned", "run_id", run.id)
	}
	o.subscribers = make(map[int]func(domain.CheckUpdate))
	o.mu.Unlock()

	if feed != nil {
		_ = feed.Close()
	}
}

func (o *CheckOrchestrator) onFeedEvent(run *checkRun, ev domain.FeedEvent) {
	o.mu.Lock()
	if !o.activeLocked(run) {
		o.mu.Unlock()
		return
	}
	o.metrics.RecordFeedEvent(string(ev.Kind))

	switch ev.Kind {
	case domain.FeedMessage:
		progress := ev.Progress
		run.log = append(run.log, progress)
		if progress.IsTerminal() {
			run.feedComplete = true
		}
		o.notifyLocked(&progress)
	case domain.FeedError:
		run.feedUnavailable = true
		msg := "progress feed unavailable"
		if ev.Err != nil {
			msg = fmt.Sprintf("progress feed error: %v", ev.Err)
		}
		run.warnings = append(run.warnings, msg)
		o.logger.Warn("check_feed_error", "run_id", run.id, "error", ev.Err)
		o.notifyLocked(nil)
	case domain.FeedClosed:
		run.feedUnavailable = true
		if !run.feedComplete {
			run.warnings = append(run.warnings, "progress feed closed before completion")
			o.logger.Warn("check_feed_closed_early", "run_id", run.id)
		}
		o.notifyLocked(nil)
	}

	feed := o.tryCompleteLocked(run)
	o.mu.Unlock()
	closeFeed(feed)
}

func (o *CheckOrchestrator) onHTTPResult(run *checkRun, result *domain.CheckResult, err error) {
	// A rejected session is cleared even when the run is already stale.
	if err != nil && o.session != nil {
		err = o.session.HandleError(err)
	}

	o.mu.Lock()
	if !o.activeLocked(run) {
		o.mu.Unlock()
		o.logger.Debug("check_stale_result_dropped", "run_id", run.id)
		return
	}

	if err == nil && result == nil {
		err = domain.WrapError(domain.ErrInvalidInput, "check", errors.New("empty result payload"))
	}
	if err != nil {
		feed := o.failLocked(run, err)
		o.mu.Unlock()
		closeFeed(feed)
		return
	}

	run.result = result
	run.httpDone = true
	feed := o.tryCompleteLocked(run)
	if feed == nil && run.state == domain.CheckRunning {
		run.grace = time.AfterFunc(o.grace, func() { o.onGraceExpired(run) })
		o.logger.Info("check_awaiting_feed", "run_id", run.id, "grace", o.grace.String())
	}
	o.mu.Unlock()
	closeFeed(feed)
}

func (o *CheckOrchestrator) onGraceExpired(run *checkRun) {
	o.mu.Lock()
	if !o.activeLocked(run) {
		o.mu.Unlock()
		return
	}
	run.warnings = append(run.warnings, "no completion marker from progress feed; completing from the HTTP result")
	o.logger.Warn("check_feed_grace_expired", "run_id", run.id, "grace", o.grace.String())
	run.feedUnavailable = true
	feed := o.tryCompleteLocked(run)
	o.mu.Unlock()
	closeFeed(feed)
}

func (o *CheckOrchestrator) activeLocked(run *checkRun) bool {
	return !o.closed && o.run == run && run.state == domain.CheckRunning
}

// tryCompleteLocked finishes the run when both sides agree and returns the
// feed to close after the lock is released.
func (o *CheckOrchestrator) tryCompleteLocked(run *checkRun) ports.ProgressFeed {
	if !run.httpDone || !(run.feedComplete || run.feedUnavailable) {
		return nil
	}

	run.state = domain.CheckCompleted
	run.finishedAt = time.Now()
	run.stopGrace()

	o.store.SaveResult(*run.result, run.scope)
	if run.scope == domain.ResultQueue {
		o.store.ClearQueue()
	}
	o.store.SaveProgressLog(run.log)

	elapsed := run.finishedAt.Sub(run.startedAt)
	o.metrics.RecordCheckRun(string(run.scope), string(domain.CheckCompleted), elapsed.Seconds())
	o.logger.Info("check_completed",
		"run_id", run.id,
		"scope", run.scope,
		"pairs", len(run.result.Pairs),
		"duration_ms", elapsed.Milliseconds(),
		"warnings", len(run.warnings),
	)
	o.notifyLocked(nil)
	close(run.done)
	return run.feed
}

func (o *CheckOrchestrator) failLocked(run *checkRun, err error) ports.ProgressFeed {
	run.state = domain.CheckFailed
	run.err = err
	run.finishedAt = time.Now()
	run.stopGrace()

	elapsed := run.finishedAt.Sub(run.startedAt)
	o.metrics.RecordCheckRun(string(run.scope), string(domain.CheckFailed), elapsed.Seconds())
	o.logger.Error("check_failed", "run_id", run.id, "scope", run.scope, "error", err)
	o.notifyLocked(nil)
	close(run.done)
	return run.feed
}

func (o *CheckOrchestrator) notifyLocked(event *domain.ProgressEvent) {
	if len(o.subscribers) == 0 {
		return
	}
	update := domain.CheckUpdate{Snapshot: o.snapshotLocked(), Event: event}
	for _, fn := range o.subscribers {
		fn(update)
	}
}

func (r *checkRun) stopGrace() {
	if r.grace != nil {
		r.grace.Stop()
		r.grace = nil
	}
	r.cancelFeed()
}

func closeFeed(feed ports.ProgressFeed) {
	if feed != nil {
		_ = feed.Close()
	}
}

type noopCheckMetrics struct{}

func (noopCheckMetrics) RecordFeedEvent(string)                {}
func (noopCheckMetrics) RecordCheckRun(string, string, float64) {}
