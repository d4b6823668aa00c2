package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/core/ports"
)

const DefaultPath = "/ws/progress"

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

var ErrAlreadyOpened = errors.New("feed already opened")

// Endpoint supplies the backend base URL and the bearer token at dial time.
type Endpoint interface {
	ResolveBaseURL() string
	Token() string
}

type Options struct {
	Path             string
	HandshakeTimeout time.Duration
	Markers          domain.MarkerSet
	Logger           *slog.Logger
}

// Listener streams progress lines of one check run. Events reach handlers
// from a single goroutine in transport order. Exactly one transport
// terminal (closed or error) is emitted unless Close was called first.
type Listener struct {
	endpoint Endpoint
	path     string
	markers  domain.MarkerSet
	dialer   *websocket.Dialer
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	handlers  []func(domain.FeedEvent)
	conn      *websocket.Conn
	seq       int
	completed bool
	done      chan struct{}
	doneOnce  sync.Once
}

func New(endpoint Endpoint, opts Options) *Listener {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	markers := opts.Markers
	if markers.Start == nil && markers.Complete == nil {
		markers = domain.DefaultMarkers()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		endpoint: endpoint,
		path:     path,
		markers:  markers,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
		logger: logger,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

func (l *Listener) OnEvent(handler func(domain.FeedEvent)) {
	if handler == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, handler)
}

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Completed reports whether the completion marker has been received.
func (l *Listener) Completed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

// Done is closed once the listener has reached the closed state and its
// reader goroutine has exited.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Open dials the feed and starts the reader. A dial failure is also
// delivered to handlers as an error event.
func (l *Listener) Open(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return ErrAlreadyOpened
	}
	l.state = StateConnecting
	l.mu.Unlock()

	target, err := FeedURL(l.endpoint.ResolveBaseURL(), l.path)
	if err != nil {
		l.fail(err)
		return err
	}

	header := http.Header{}
	if token := l.endpoint.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := l.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		err = dialError(resp, err)
		l.logger.Warn("progress_feed_dial_failed", "url", target, "error", err)
		l.fail(err)
		return err
	}

	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		_ = conn.Close()
		l.markDone()
		return nil
	}
	l.state = StateOpen
	l.conn = conn
	l.mu.Unlock()

	l.logger.Debug("progress_feed_open", "url", target)
	go l.readLoop(conn)
	return nil
}

// Close moves the listener to closed. It is safe to call more than once;
// frames arriving afterwards are dropped.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return nil
	}
	prev := l.state
	l.state = StateClosed
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		if prev == StateIdle {
			l.markDone()
		}
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

func (l *Listener) readLoop(conn *websocket.Conn) {
	defer l.markDone()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			l.finish(conn, err)
			return
		}

		text := messageText(data)
		if text == "" {
			continue
		}

		l.mu.Lock()
		if l.state != StateOpen {
			l.mu.Unlock()
			return
		}
		l.seq++
		event := domain.NewProgressEvent(l.seq, text, l.markers, time.Now())
		if event.IsTerminal() {
			l.completed = true
		}
		handlers := append([]func(domain.FeedEvent){}, l.handlers...)
		l.mu.Unlock()

		for _, h := range handlers {
			h(domain.FeedEvent{Kind: domain.FeedMessage, Progress: event})
		}
	}
}

// finish emits the single transport terminal unless Close got there first.
func (l *Listener) finish(conn *websocket.Conn, readErr error) {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = StateClosed
	handlers := append([]func(domain.FeedEvent){}, l.handlers...)
	l.mu.Unlock()
	_ = conn.Close()

	event := domain.FeedEvent{Kind: domain.FeedClosed}
	if !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		event = domain.FeedEvent{Kind: domain.FeedError, Err: domain.WrapError(domain.ErrNetwork, "feed.read", readErr)}
		l.logger.Warn("progress_feed_dropped", "error", readErr)
	} else {
		l.logger.Debug("progress_feed_closed")
	}
	for _, h := range handlers {
		h(event)
	}
}

func (l *Listener) fail(err error) {
	defer l.markDone()
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = StateClosed
	handlers := append([]func(domain.FeedEvent){}, l.handlers...)
	l.mu.Unlock()

	for _, h := range handlers {
		h(domain.FeedEvent{Kind: domain.FeedError, Err: err})
	}
}

func (l *Listener) markDone() {
	l.doneOnce.Do(func() { close(l.done) })
}

// messageText accepts plain text frames and JSON frames carrying a
// "message" field.
func messageText(data []byte) string {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
			return strings.TrimSpace(payload.Message)
		}
	}
	return text
}

// FeedURL maps an http(s) base URL onto the ws(s) URL of the feed path.
func FeedURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return "", fmt.Errorf("parse feed base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "feed.url", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

type Factory struct {
	endpoint Endpoint
	opts     Options
}

func NewFactory(endpoint Endpoint, opts Options) *Factory {
	return &Factory{endpoint: endpoint, opts: opts}
}

func (f *Factory) NewFeed() ports.ProgressFeed {
	return New(f.endpoint, f.opts)
}

// dialError keeps a handshake the backend answered apart from one that
// never reached it.
func dialError(resp *http.Response, err error) error {
	if resp == nil {
		return domain.WrapError(domain.ErrNetwork, "feed.dial", err)
	}
	err = fmt.Errorf("handshake status %s: %w", resp.Status, err)
	if kind := domain.KindForStatus(resp.StatusCode); kind != nil {
		return domain.WrapError(kind, "feed.dial", err)
	}
	return fmt.Errorf("feed.dial: %w", err)
}
