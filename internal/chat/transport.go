package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
	"github.com/arcreactor/workspace/internal/shared/id"
	"github.com/arcreactor/workspace/internal/store"
)

// ErrNotConnected is returned by SendMessage when the socket is not open.
var ErrNotConnected = errors.New("chat: connection not available")

// Default timings.
const (
	DefaultInitialDelay   = 100 * time.Millisecond
	DefaultReconnectDelay = 2 * time.Second
	DefaultMaxReconnects  = 5
	DefaultWriteTimeout   = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws dial failed: %w", err)
	}
	return conn, nil
}

// Options configures a Session.
type Options struct {
	URL              string
	InitialDelay     time.Duration
	ReconnectDelay   time.Duration
	MaxReconnects    int
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	Dialer           Dialer
	Chat             *store.ChatStore
	Workspace        *store.WorkspaceStore
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

// Session is one chat connection with automatic reconnection.
type Session struct {
	opts       Options
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	chat       *store.ChatStore
	dispatcher *Dispatcher

	events chan any
	quit   chan struct{}
	done   chan struct{}

	started   atomic.Bool
	state     atomic.Int32
	open      atomic.Uint64
	closeOnce sync.Once
	quitOnce  sync.Once
	wg        sync.WaitGroup

	// Loop-owned.
	machine    *Machine
	conn       Conn
	connID     uint64
	dialCancel context.CancelFunc
	timer      *time.Timer
	timerGen   uint64
}

type (
	timerFired struct{ gen uint64 }
	dialResult struct {
		id   uint64
		conn Conn
		err  error
	}
	inbound struct {
		id   uint64
		data string
	}
	readFailed struct {
		id  uint64
		err error
	}
	sendRequest struct {
		text  string
		reply chan error
	}
	clearRequest struct{ reply chan struct{} }
	stopRequest  struct{}
)

// NewSession creates a session. Nothing is dialed until Start.
func NewSession(opts Options) *Session {
	if opts.InitialDelay == 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = DefaultMaxReconnects
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(nil)
	}
	if opts.Chat == nil {
		opts.Chat = store.NewChatStore()
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		}}
	}

	logger := opts.Logger.With(zap.String("component", "chat"), zap.String("url", opts.URL))
	return &Session{
		opts:       opts,
		logger:     logger,
		metrics:    opts.Metrics,
		chat:       opts.Chat,
		dispatcher: NewDispatcher(opts.Chat, opts.Workspace, logger, opts.Metrics),
		events:     make(chan any),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		machine:    NewMachine(opts.InitialDelay, opts.ReconnectDelay, opts.MaxReconnects),
	}
}

// Start arms the initial connect. If Stop is called or ctx ends before
// the initial delay elapses, nothing is dialed. Start is a no-op after the
// first call.
func (s *Session) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	go s.loop(ctx)
}

// Stop closes the connection and suppresses reconnection. It blocks until
// the session's goroutines have exited.
func (s *Session) Stop() {
	if s.started.Load() && s.post(stopRequest{}) {
		<-s.done
		return
	}
	s.shutdown()
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// SendMessage sends text to the agent. Blank text is ignored. When the
// socket is not open the store error is set and ErrNotConnected returned.
func (s *Session) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	req := sendRequest{text: text, reply: make(chan error, 1)}
	if !s.started.Load() || !s.post(req) {
		// Loop is not running; no other writer exists.
		s.chat.SetError(ErrMsgUnavailable)
		return ErrNotConnected
	}
	return <-req.reply
}

// ClearMessages empties the conversation.
func (s *Session) ClearMessages() {
	req := clearRequest{reply: make(chan struct{})}
	if s.started.Load() && s.post(req) {
		<-req.reply
		return
	}
	s.chat.ClearMessages()
}

// State returns the connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Connection identifies the socket currently open, or returns 0 when none
// is. A reconnect yields a new value, so a caller can tell that the socket
// a reply was streaming on is gone.
func (s *Session) Connection() uint64 {
	return s.open.Load()
}

// IsLoading reports whether a response is streaming.
func (s *Session) IsLoading() bool { return s.chat.IsLoading() }

// Err returns the surfaced error, or "".
func (s *Session) Err() string { return s.chat.Err() }

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []store.ChatMessage { return s.chat.Messages() }

// post hands ev to the loop. It reports false once the loop is shutting
// down.
func (s *Session) post(ev any) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

func (s *Session) loop(ctx context.Context) {
	defer s.shutdown()

	s.step(EventStart)
	for {
		select {
		case <-ctx.Done():
			s.step(EventStop)
			return
		case ev := <-s.events:
			if s.handle(ev) {
				return
			}
		}
	}
}

// shutdown stops posters, waits for readers and dialers, then marks the
// session done.
func (s *Session) shutdown() {
	s.quitOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
	s.closeOnce.Do(func() { close(s.done) })
}

// handle applies one event. It reports true when the loop should exit.
func (s *Session) handle(ev any) bool {
	switch ev := ev.(type) {
	case timerFired:
		if ev.gen == s.timerGen {
			s.timer = nil
			s.step(EventTimer)
		}

	case dialResult:
		s.onDialResult(ev)

	case inbound:
		if ev.id == s.connID && s.conn != nil {
			s.metrics.RecordWSMessage("in", "text")
			s.dispatcher.HandleMessage(ev.data)
		}

	case readFailed:
		if ev.id != s.connID || s.conn == nil {
			return false
		}
		s.dropConn()
		var closeErr *websocket.CloseError
		if !errors.As(ev.err, &closeErr) {
			s.logger.Warn("chat socket error", zap.Error(ev.err))
			s.step(EventError)
		} else {
			s.logger.Info("chat socket closed", zap.Int("code", closeErr.Code))
		}
		s.step(EventClose)

	case sendRequest:
		ev.reply <- s.send(ev.text)

	case clearRequest:
		s.chat.ClearMessages()
		close(ev.reply)

	case stopRequest:
		s.step(EventStop)
		return true
	}
	return false
}

func (s *Session) onDialResult(ev dialResult) {
	if ev.id != s.connID || s.machine.State() != StateConnecting {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}
	s.dialCancel = nil

	if ev.err != nil {
		s.logger.Warn("chat dial failed", zap.Error(ev.err))
		s.step(EventError)
		s.step(EventClose)
		return
	}

	s.conn = ev.conn
	s.open.Store(ev.id)
	s.dispatcher.Reset()
	s.metrics.IncWSConnections()
	s.wg.Add(1)
	go s.read(ev.id, ev.conn)

	s.logger.Info("chat connected")
	s.step(EventOpen)
}

func (s *Session) send(text string) error {
	if s.machine.State() != StateOpen || s.conn == nil {
		s.chat.SetError(ErrMsgUnavailable)
		return ErrNotConnected
	}

	data, err := EncodeMessage(text, s.chat.ThreadID())
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	// A reply cut off by a dropped socket never receives its finish frame.
	// Only the newest placeholder may stream.
	s.chat.UpdateLast(func(msg *store.ChatMessage) {
		if msg.Role == store.RoleAssistant && msg.IsStreaming {
			msg.IsStreaming = false
			s.logger.Debug("superseding unfinished reply", zap.String("message_id", msg.ID))
		}
	})

	now := time.Now()
	s.chat.AddMessage(store.ChatMessage{
		ID:        id.NewMessageID().String(),
		Role:      store.RoleUser,
		Content:   text,
		CreatedAt: now,
	})
	s.chat.AddMessage(store.ChatMessage{
		ID:          id.NewMessageID().String(),
		Role:        store.RoleAssistant,
		CreatedAt:   now,
		IsStreaming: true,
	})
	s.chat.SetLoading(true)

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("chat write failed", zap.Error(err))
		s.chat.UpdateLast(func(msg *store.ChatMessage) { msg.IsStreaming = false })
		s.chat.SetError(ErrMsgConnection)
		s.chat.SetLoading(false)
		return fmt.Errorf("send message: %w", err)
	}
	s.metrics.RecordWSMessage("out", "message")
	return nil
}

// step feeds the machine and performs the resulting actions.
func (s *Session) step(ev Event) {
	for _, a := range s.machine.Step(ev) {
		s.perform(a)
	}

	state := s.machine.State()
	if State(s.state.Swap(int32(state))) != state {
		s.metrics.SetChatState(state.String(), stateNames)
		s.logger.Debug("chat state", zap.Stringer("state", state), zap.Int("attempts", s.machine.Attempts()))
	}
}

func (s *Session) perform(a Action) {
	switch a.Kind {
	case ActionScheduleDial:
		if s.machine.State() == StateReconnecting {
			s.metrics.IncReconnects()
			s.logger.Info("scheduling chat reconnect",
				zap.Int("attempt", s.machine.Attempts()),
				zap.Duration("delay", a.Delay))
		}
		s.schedule(a.Delay)

	case ActionDial:
		s.dial()

	case ActionCloseSocket:
		if s.dialCancel != nil {
			s.dialCancel()
			s.dialCancel = nil
		}
		if s.conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			s.dropConn()
		}

	case ActionCancelTimer:
		s.cancelTimer()

	case ActionSetError:
		s.chat.SetError(a.Message)

	case ActionClearError:
		s.chat.SetError("")

	case ActionClearLoading:
		s.chat.SetLoading(false)
	}
}

func (s *Session) dropConn() {
	s.conn.Close()
	s.conn = nil
	s.open.Store(0)
	s.metrics.DecWSConnections()
}

func (s *Session) schedule(delay time.Duration) {
	s.cancelTimer()
	s.timerGen++
	gen := s.timerGen

	s.wg.Add(1)
	s.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.post(timerFired{gen: gen})
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
	s.timerGen++
}

func (s *Session) dial() {
	s.connID++
	connID := s.connID

	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		conn, err := s.opts.Dialer.Dial(ctx, s.opts.URL)
		if !s.post(dialResult{id: connID, conn: conn, err: err}) && conn != nil {
			conn.Close()
		}
	}()
}

func (s *Session) read(connID uint64, conn Conn) {
	defer s.wg.Done()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.post(readFailed{id: connID, err: err})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !s.post(inbound{id: connID, data: string(data)}) {
			return
		}
	}
}
