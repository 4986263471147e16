package store

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arcreactor/workspace/internal/samplesheet"
)

func TestChatStoreUpsertToolMergesByID(t *testing.T) {
	s := NewChatStore()
	s.AddMessage(ChatMessage{ID: "a1", Role: RoleAssistant})

	s.UpsertTool("call-1", ToolPatch{ToolName: "get_samplesheet", Args: map[string]any{"run": "r1"}, State: ToolRunning})
	s.UpsertTool("call-2", ToolPatch{State: ToolCompleted, Result: 42, HasResult: true})
	s.UpsertTool("call-1", ToolPatch{State: ToolCompleted, Result: "ok", HasResult: true})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	tools := msgs[0].ToolInvocations
	require.Len(t, tools, 2)

	assert.Equal(t, "call-1", tools[0].ToolCallID)
	assert.Equal(t, "get_samplesheet", tools[0].ToolName)
	assert.Equal(t, map[string]any{"run": "r1"}, tools[0].Args)
	assert.Equal(t, ToolCompleted, tools[0].State)
	assert.Equal(t, "ok", tools[0].Result)

	assert.Equal(t, DefaultToolName, tools[1].ToolName)
	assert.Equal(t, map[string]any{}, tools[1].Args)
	assert.Equal(t, 42, tools[1].Result)
}

func TestChatStoreUpdateLastOnEmptyIsNoop(t *testing.T) {
	s := NewChatStore()
	s.UpdateLast(func(m *ChatMessage) { m.Content = "x" })
	s.UpsertTool("c", ToolPatch{})
	assert.Empty(t, s.Messages())
}

func TestChatStoreSnapshotIsDeepCopy(t *testing.T) {
	s := NewChatStore()
	s.AddMessage(ChatMessage{ID: "a1", Role: RoleAssistant})
	s.UpsertTool("c", ToolPatch{Args: map[string]any{"k": "v"}})
	s.SetThreadID("t1")

	snap := s.Snapshot()
	snap.Messages[0].Content = "mutated"
	snap.Messages[0].ToolInvocations[0].Args["k"] = "changed"
	*snap.ThreadID = "other"

	again := s.Snapshot()
	assert.Empty(t, again.Messages[0].Content)
	assert.Equal(t, "v", again.Messages[0].ToolInvocations[0].Args["k"])
	assert.Equal(t, "t1", *s.ThreadID())
}

func TestChatStoreSubscribe(t *testing.T) {
	s := NewChatStore()

	var seen []bool
	unsubscribe := s.Subscribe(func(st ChatState) { seen = append(seen, st.IsLoading) })

	s.SetLoading(true)
	s.SetLoading(false)
	unsubscribe()
	s.SetLoading(true)

	assert.Equal(t, []bool{true, false}, seen)
}

func TestChatStoreClearMessagesKeepsThread(t *testing.T) {
	s := NewChatStore()
	s.AddMessage(ChatMessage{ID: "u1", Role: RoleUser, Content: "hi"})
	s.SetThreadID("t1")
	s.SetError("boom")

	s.ClearMessages()

	assert.Empty(t, s.Messages())
	require.NotNil(t, s.ThreadID())
	assert.Equal(t, "t1", *s.ThreadID())
	assert.Equal(t, "boom", s.Err())
}

func TestChatStoreConcurrentWritersPublishInOrder(t *testing.T) {
	s := NewChatStore()

	var seen []int
	defer s.Subscribe(func(st ChatState) { seen = append(seen, len(st.Messages)) })()

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.AddMessage(ChatMessage{Role: RoleUser})
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, writers*perWriter)
	for i, n := range seen {
		require.Equal(t, i+1, n, "snapshot %d delivered out of order", i)
	}
}

func TestWorkspaceLastPublishedMatchesState(t *testing.T) {
	s := NewWorkspaceStore()

	var last WorkspaceState
	var lengths []int
	defer s.Subscribe(func(st WorkspaceState) {
		last = st
		lengths = append(lengths, len(st.Samplesheet))
	})()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.Update(func(st *WorkspaceState) { st.Samplesheet += "x" })
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.SetConfig(strings.Repeat("c", i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, s.Snapshot(), last)
	for i := 1; i < len(lengths); i++ {
		require.GreaterOrEqual(t, lengths[i], lengths[i-1])
	}
}

func TestWorkspaceDirtyFlags(t *testing.T) {
	s := NewWorkspaceStore()

	s.SetSamplesheet("sample\nS1")
	st := s.Snapshot()
	assert.True(t, st.IsDirty)
	assert.True(t, st.SamplesheetDirty)
	assert.False(t, st.ConfigDirty)

	s.SetConfig("params {}")
	assert.True(t, s.Snapshot().ConfigDirty)

	s.SetPipeline("nf-core/scrnaseq", "2.7.1")
	st = s.Snapshot()
	assert.Equal(t, "nf-core/scrnaseq", st.SelectedPipeline)
	assert.Equal(t, "2.7.1", st.SelectedVersion)
	assert.False(t, st.IsDirty)
	assert.False(t, st.SamplesheetDirty)
	assert.False(t, st.ConfigDirty)
	assert.Equal(t, "sample\nS1", st.Samplesheet)

	s.Clear()
	assert.Equal(t, WorkspaceState{}, s.Snapshot())
}

func TestWorkspaceValidateSamplesheet(t *testing.T) {
	s := NewWorkspaceStore()
	s.SetSamplesheet("sample,fastq_1,fastq_2,expected_cells\nS1,gs://a,/local/b,1000")

	result, err := s.ValidateSamplesheet()
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "fastq_2", result.Errors[0].Field)
	require.Len(t, result.Warnings, 1)

	stored := s.Snapshot().Validation
	require.NotNil(t, stored)
	assert.Equal(t, result, *stored)

	stored.Errors[0].Message = "mutated"
	assert.NotEqual(t, "mutated", s.Snapshot().Validation.Errors[0].Message)
}

func TestWorkspaceSetValidationNil(t *testing.T) {
	s := NewWorkspaceStore()
	s.SetValidationResult(&samplesheet.ValidationResult{IsValid: true})
	s.SetValidationResult(nil)
	assert.Nil(t, s.Snapshot().Validation)
}

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) SetTheme(theme string) error {
	return m.Called(theme).Error(0)
}

func TestUIStoreDefaults(t *testing.T) {
	s := NewUIStore("purple", nil)
	st := s.Snapshot()
	assert.Equal(t, "samplesheet", st.ActiveTab)
	assert.Equal(t, ThemeLight, st.Theme)
	assert.False(t, st.SidebarOpen)
	assert.False(t, st.SidebarCollapsed)
}

func TestUIStoreToggles(t *testing.T) {
	s := NewUIStore(ThemeDark, nil)

	s.ToggleSidebar()
	s.ToggleSidebarCollapsed()
	s.SetActiveTab("config")

	st := s.Snapshot()
	assert.True(t, st.SidebarOpen)
	assert.True(t, st.SidebarCollapsed)
	assert.Equal(t, "config", st.ActiveTab)

	s.ToggleSidebar()
	assert.False(t, s.Snapshot().SidebarOpen)
}

func TestUIStoreSetThemePersists(t *testing.T) {
	p := &mockPersister{}
	p.On("SetTheme", "dark").Return(nil).Once()
	p.On("SetTheme", "light").Return(errors.New("read-only")).Once()

	s := NewUIStore(ThemeLight, p)
	require.NoError(t, s.SetTheme(ThemeDark))
	assert.Equal(t, ThemeDark, s.Snapshot().Theme)

	assert.EqualError(t, s.SetTheme(ThemeLight), "read-only")
	assert.Equal(t, ThemeLight, s.Snapshot().Theme)

	p.AssertExpectations(t)
}

func TestParseTheme(t *testing.T) {
	theme, ok := ParseTheme("dark")
	assert.True(t, ok)
	assert.Equal(t, ThemeDark, theme)

	_, ok = ParseTheme("Dark")
	assert.False(t, ok)
}
