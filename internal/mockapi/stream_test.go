package mockapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcreactor/workspace/internal/api"
	"github.com/arcreactor/workspace/internal/chat"
	"github.com/arcreactor/workspace/internal/events"
	"github.com/arcreactor/workspace/internal/store"
)

const waitFor = 2 * time.Second

type recorder struct {
	mu       sync.Mutex
	statuses []api.RunStatus
	done     *events.StatusEvent
}

func (r *recorder) handlers() events.Handlers {
	return events.Handlers{
		OnStatus: func(ev events.StatusEvent) {
			r.mu.Lock()
			r.statuses = append(r.statuses, ev.Status)
			r.mu.Unlock()
		},
		OnDone: func(ev events.StatusEvent) {
			r.mu.Lock()
			r.done = &ev
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() ([]api.RunStatus, *events.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.RunStatus(nil), r.statuses...), r.done
}

func subscribe(t *testing.T, baseURL, runID string) (*events.Stream, *recorder) {
	t.Helper()
	rec := &recorder{}
	stream := events.NewClient(events.Options{BaseURL: baseURL + "/api"}).
		Subscribe(context.Background(), runID, rec.handlers())
	t.Cleanup(stream.Close)
	return stream, rec
}

func TestRunEventsFollowStatusChanges(t *testing.T) {
	srv, ts := newTestServer(t)
	stream, rec := subscribe(t, ts.URL, "run-running")

	require.Eventually(t, func() bool {
		statuses, _ := rec.snapshot()
		return len(statuses) == 1
	}, waitFor, 5*time.Millisecond)

	srv.Fixtures().SetStatus("run-running", api.StatusCompleted)

	select {
	case <-stream.Done():
	case <-time.After(waitFor):
		t.Fatal("stream did not end")
	}
	require.NoError(t, stream.Err())

	statuses, done := rec.snapshot()
	assert.Equal(t, []api.RunStatus{api.StatusRunning, api.StatusCompleted}, statuses)
	require.NotNil(t, done)
	assert.Equal(t, api.StatusCompleted, done.Status)
}

func TestRunEventsTerminalRunEndsImmediately(t *testing.T) {
	_, ts := newTestServer(t)
	stream, rec := subscribe(t, ts.URL, "run-failed")

	select {
	case <-stream.Done():
	case <-time.After(waitFor):
		t.Fatal("stream did not end")
	}

	statuses, done := rec.snapshot()
	assert.Equal(t, []api.RunStatus{api.StatusFailed}, statuses)
	require.NotNil(t, done)
	assert.Equal(t, api.StatusFailed, done.Status)
}

func TestRunEventsDeletedRun(t *testing.T) {
	srv, ts := newTestServer(t)
	stream, rec := subscribe(t, ts.URL, "run-pending")

	require.Eventually(t, func() bool {
		statuses, _ := rec.snapshot()
		return len(statuses) == 1
	}, waitFor, 5*time.Millisecond)
	srv.Fixtures().Delete("run-pending")

	select {
	case <-stream.Done():
	case <-time.After(waitFor):
		t.Fatal("stream did not end")
	}
	_, done := rec.snapshot()
	require.NotNil(t, done)
	assert.Equal(t, api.RunStatus("not_found"), done.Status)
}

func TestRunEventsUnknownRun(t *testing.T) {
	_, ts := newTestServer(t)
	stream, _ := subscribe(t, ts.URL, "missing")

	select {
	case <-stream.Done():
	case <-time.After(waitFor):
		t.Fatal("stream did not end")
	}
	assert.True(t, api.IsNotFound(stream.Err()))
}

func newChatSession(t *testing.T, baseURL string) (*chat.Session, *store.ChatStore, *store.WorkspaceStore) {
	t.Helper()
	chatStore := store.NewChatStore()
	workspace := store.NewWorkspaceStore()
	s := chat.NewSession(chat.Options{
		URL:          "ws" + strings.TrimPrefix(baseURL, "http") + chat.DefaultPath,
		InitialDelay: time.Millisecond,
		Chat:         chatStore,
		Workspace:    workspace,
	})
	s.Start(context.Background())
	t.Cleanup(func() {
		s.Stop()
		<-s.Done()
	})

	require.Eventually(t, func() bool { return s.State() == chat.StateOpen }, waitFor, 5*time.Millisecond)
	return s, chatStore, workspace
}

func waitIdle(t *testing.T, chatStore *store.ChatStore) {
	t.Helper()
	require.Eventually(t, func() bool { return !chatStore.IsLoading() }, waitFor, 5*time.Millisecond)
}

func TestChatScriptedTurn(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.WithChunkSize(7)
	s, chatStore, workspace := newChatSession(t, ts.URL)

	require.NoError(t, s.SendMessage("show the samplesheet"))
	waitIdle(t, chatStore)

	msgs := chatStore.Messages()
	require.Len(t, msgs, 2)
	assistant := msgs[1]
	assert.Equal(t, "You said: show the samplesheet", assistant.Content)
	assert.False(t, assistant.IsStreaming)
	require.Len(t, assistant.ToolInvocations, 1)
	assert.Equal(t, "get_samplesheet", assistant.ToolInvocations[0].ToolName)
	assert.Equal(t, store.ToolCompleted, assistant.ToolInvocations[0].State)

	assert.Equal(t, SampleSheet, workspace.Samplesheet())
	require.NotNil(t, chatStore.ThreadID())
	assert.True(t, strings.HasPrefix(*chatStore.ThreadID(), "thread-"))
}

func TestChatKeepsThreadAcrossTurns(t *testing.T) {
	_, ts := newTestServer(t)
	s, chatStore, workspace := newChatSession(t, ts.URL)

	require.NoError(t, s.SendMessage("hello"))
	waitIdle(t, chatStore)
	first := *chatStore.ThreadID()

	require.NoError(t, s.SendMessage("write the config"))
	waitIdle(t, chatStore)

	assert.Equal(t, first, *chatStore.ThreadID())
	assert.Equal(t, SampleConfig, workspace.Config())
	assert.Len(t, chatStore.Messages(), 4)
}

func TestChatAgentFailureEndsTurn(t *testing.T) {
	_, ts := newTestServer(t)
	s, chatStore, _ := newChatSession(t, ts.URL)

	require.NoError(t, s.SendMessage("please fail"))
	waitIdle(t, chatStore)

	msgs := chatStore.Messages()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
}

func TestChatCustomScript(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.WithScript(func(content, threadID string) []string {
		return []string{"0:\"pong\"\n", "e:{}\n"}
	})
	s, chatStore, _ := newChatSession(t, ts.URL)

	require.NoError(t, s.SendMessage("ping"))
	waitIdle(t, chatStore)
	assert.Equal(t, "pong", chatStore.Messages()[1].Content)
}

func TestDefaultScriptFrames(t *testing.T) {
	lines := DefaultScript("hi config", "thread-1")
	require.NotEmpty(t, lines)
	assert.Equal(t, "f:{\"messageId\":\"thread-1\"}\n", lines[0])
	assert.Equal(t, "d:{\"finishReason\":\"stop\"}\n", lines[len(lines)-1])

	var tools []string
	for _, line := range lines {
		frame, ok := chat.ParseLine(strings.TrimSpace(line))
		require.True(t, ok)
		if frame.Code == chat.CodeToolCall {
			call, err := chat.Decode[chat.ToolCall](frame.Payload)
			require.NoError(t, err)
			tools = append(tools, call.ToolName)
		}
	}
	assert.Equal(t, []string{"generate_config"}, tools)
}
