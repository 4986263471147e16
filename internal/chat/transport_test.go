package chat

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
	"github.com/arcreactor/workspace/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

// fakeConn delivers queued strings as text messages and queued errors as
// read failures.
type fakeConn struct {
	inbox  chan any
	closed chan struct{}
	once   sync.Once

	failWrites atomic.Bool

	mu      sync.Mutex
	written []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan any, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case item := <-c.inbox:
		if err, ok := item.(error); ok {
			return 0, nil, err
		}
		return websocket.TextMessage, []byte(item.(string)), nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.failWrites.Load() {
		return errors.New("broken pipe")
	}
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type fakeDialer struct {
	fail  atomic.Bool
	dials atomic.Int32
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 32)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.dials.Add(1)
	if d.fail.Load() {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitFor):
		t.Fatal("no dial")
		return nil
	}
}

type sessionFixture struct {
	s         *Session
	dialer    *fakeDialer
	chat      *store.ChatStore
	workspace *store.WorkspaceStore
	metrics   *monitoring.Metrics
}

func newSessionFixture(t *testing.T, mutate ...func(*Options)) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		dialer:    newFakeDialer(),
		chat:      store.NewChatStore(),
		workspace: store.NewWorkspaceStore(),
		metrics:   monitoring.NewMetrics(nil),
	}
	opts := Options{
		URL:            "ws://arc.test/api/chat/ws",
		InitialDelay:   time.Millisecond,
		ReconnectDelay: time.Millisecond,
		Dialer:         f.dialer,
		Chat:           f.chat,
		Workspace:      f.workspace,
		Metrics:        f.metrics,
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.s = NewSession(opts)
	t.Cleanup(f.s.Stop)
	return f
}

func (f *sessionFixture) open(t *testing.T) *fakeConn {
	t.Helper()
	f.s.Start(context.Background())
	conn := f.dialer.next(t)
	require.Eventually(t, func() bool { return f.s.State() == StateOpen }, waitFor, time.Millisecond)
	return conn
}

func TestSessionStreamsResponse(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.open(t)

	require.NoError(t, f.s.SendMessage("Generate a samplesheet"))
	assert.True(t, f.s.IsLoading())

	sent := conn.sent()
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"type":"message","content":"Generate a samplesheet","thread_id":null}`, sent[0])

	msgs := f.s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "Generate a samplesheet", msgs[0].Content)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[1].IsStreaming)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	conn.inbox <- `{"type":"connected"}`
	conn.inbox <- `0:"Here is`
	conn.inbox <- " your sheet\"\n9:{\"toolCallId\":\"t1\",\"toolName\":\"get_samplesheet\",\"args\":{}}\n"
	conn.inbox <- "a:{\"toolCallId\":\"t1\",\"result\":\"sample,fastq_1\\nS1,gs://x\"}\nf:{\"messageId\":\"thread-1\"}\nd:{}\n"

	require.Eventually(t, func() bool { return !f.s.IsLoading() }, waitFor, time.Millisecond)

	last := f.s.Messages()[1]
	assert.Equal(t, "Here is your sheet", last.Content)
	assert.False(t, last.IsStreaming)
	require.Len(t, last.ToolInvocations, 1)
	assert.Equal(t, store.ToolCompleted, last.ToolInvocations[0].State)
	assert.Equal(t, "sample,fastq_1\nS1,gs://x", f.workspace.Samplesheet())

	require.NoError(t, f.s.SendMessage("thanks"))
	sent = conn.sent()
	require.Len(t, sent, 2)
	assert.JSONEq(t, `{"type":"message","content":"thanks","thread_id":"thread-1"}`, sent[1])
}

func TestSessionIgnoresBlankMessages(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.open(t)

	assert.NoError(t, f.s.SendMessage(""))
	assert.NoError(t, f.s.SendMessage("   "))
	assert.NoError(t, f.s.SendMessage("\n\t"))

	assert.Empty(t, f.s.Messages())
	assert.Empty(t, conn.sent())
	assert.False(t, f.s.IsLoading())
}

func TestSessionSendWhileNotOpen(t *testing.T) {
	t.Run("never started", func(t *testing.T) {
		f := newSessionFixture(t)

		err := f.s.SendMessage("hi")
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Equal(t, ErrMsgUnavailable, f.s.Err())
		assert.Empty(t, f.s.Messages())
	})

	t.Run("waiting for initial dial", func(t *testing.T) {
		f := newSessionFixture(t, func(o *Options) { o.InitialDelay = time.Hour })
		f.s.Start(context.Background())

		err := f.s.SendMessage("hi")
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Equal(t, ErrMsgUnavailable, f.s.Err())
		assert.Empty(t, f.s.Messages())
		assert.Equal(t, int32(0), f.dialer.dials.Load())
	})

	t.Run("after stop", func(t *testing.T) {
		f := newSessionFixture(t)
		f.open(t)
		f.s.Stop()

		err := f.s.SendMessage("hi")
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Empty(t, f.s.Messages())
	})
}

func TestSessionWriteFailureEndsPlaceholder(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.open(t)
	conn.failWrites.Store(true)

	err := f.s.SendMessage("hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConnected)

	assert.False(t, f.s.IsLoading())
	assert.Equal(t, ErrMsgConnection, f.s.Err())
	msgs := f.s.Messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[1].IsStreaming)
}

func TestSessionOnlyNewestReplyStreams(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.open(t)

	require.NoError(t, f.s.SendMessage("first"))
	conn.inbox <- "0:\"partial\"\n"
	require.Eventually(t, func() bool {
		msgs := f.s.Messages()
		return len(msgs) == 2 && msgs[1].Content == "partial"
	}, waitFor, time.Millisecond)

	require.NoError(t, f.s.SendMessage("second"))

	msgs := f.s.Messages()
	require.Len(t, msgs, 4)
	var streaming []int
	for i, m := range msgs {
		if m.IsStreaming {
			streaming = append(streaming, i)
		}
	}
	assert.Equal(t, []int{3}, streaming)
	assert.Equal(t, "partial", msgs[1].Content)
	assert.True(t, f.s.IsLoading())
}

func TestSessionReconnectBudget(t *testing.T) {
	f := newSessionFixture(t)
	f.dialer.fail.Store(true)
	f.s.Start(context.Background())

	require.Eventually(t, func() bool { return f.s.State() == StateFailed }, waitFor, time.Millisecond)

	assert.Equal(t, ErrMsgReconnect, f.s.Err())
	assert.Equal(t, int32(1+DefaultMaxReconnects), f.dialer.dials.Load())
	assert.Equal(t, int64(DefaultMaxReconnects), f.metrics.Snapshot().Reconnects)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1+DefaultMaxReconnects), f.dialer.dials.Load())
}

func TestSessionReconnectsAfterServerClose(t *testing.T) {
	f := newSessionFixture(t)
	first := f.open(t)

	firstID := f.s.Connection()
	require.NotZero(t, firstID)

	first.inbox <- &websocket.CloseError{Code: websocket.CloseGoingAway}
	second := f.dialer.next(t)
	require.Eventually(t, func() bool { return f.s.State() == StateOpen }, waitFor, time.Millisecond)
	assert.NotZero(t, f.s.Connection())
	assert.NotEqual(t, firstID, f.s.Connection())

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.Empty(t, f.s.Err())
	assert.Equal(t, int64(1), f.metrics.Snapshot().Reconnects)
}

func TestSessionAbnormalCloseReportsError(t *testing.T) {
	f := newSessionFixture(t, func(o *Options) { o.ReconnectDelay = time.Hour })
	conn := f.open(t)

	conn.inbox <- io.ErrUnexpectedEOF
	require.Eventually(t, func() bool { return f.s.State() == StateReconnecting }, waitFor, time.Millisecond)
	assert.Equal(t, ErrMsgConnection, f.s.Err())
	assert.Equal(t, int32(1), f.dialer.dials.Load())
}

func TestSessionStopSuppressesReconnect(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.open(t)

	require.NoError(t, f.s.SendMessage("hi"))
	f.s.Stop()

	assert.Equal(t, StateClosed, f.s.State())
	assert.True(t, conn.isClosed())
	assert.False(t, f.s.IsLoading())

	select {
	case <-f.s.Done():
	default:
		t.Fatal("session not done after Stop")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), f.dialer.dials.Load())
	assert.Equal(t, int64(0), f.metrics.Snapshot().Reconnects)
}

func TestSessionStopBeforeInitialDelay(t *testing.T) {
	f := newSessionFixture(t, func(o *Options) { o.InitialDelay = 50 * time.Millisecond })
	f.s.Start(context.Background())
	f.s.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), f.dialer.dials.Load())
	assert.Equal(t, StateClosed, f.s.State())
}

func TestSessionContextCancelActsAsStop(t *testing.T) {
	f := newSessionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.s.Start(ctx)
	conn := f.dialer.next(t)
	require.Eventually(t, func() bool { return f.s.State() == StateOpen }, waitFor, time.Millisecond)

	cancel()
	select {
	case <-f.s.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not stop")
	}
	assert.True(t, conn.isClosed())
	assert.Equal(t, int32(1), f.dialer.dials.Load())
}

func TestSessionClearMessages(t *testing.T) {
	f := newSessionFixture(t)
	f.open(t)

	require.NoError(t, f.s.SendMessage("hi"))
	require.Len(t, f.s.Messages(), 2)

	f.s.ClearMessages()
	assert.Empty(t, f.s.Messages())
}

func TestSessionOverGorillaServer(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	received := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected"}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
			for _, chunk := range []string{"0:\"po", "ng\"\n", "d:{}\n"} {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(chunk)); err != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	chat := store.NewChatStore()
	s := NewSession(Options{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http") + DefaultPath,
		InitialDelay: time.Millisecond,
		Chat:         chat,
	})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return s.State() == StateOpen }, waitFor, time.Millisecond)
	require.NoError(t, s.SendMessage("ping"))

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"type":"message","content":"ping","thread_id":null}`, msg)
	case <-time.After(waitFor):
		t.Fatal("server received nothing")
	}

	require.Eventually(t, func() bool { return !s.IsLoading() }, waitFor, time.Millisecond)
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "pong", msgs[1].Content)
	assert.Empty(t, s.Err())
}
