package store

import (
	"maps"
	"sync"
	"time"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolState is the lifecycle state of a tool invocation.
type ToolState string

const (
	ToolPending   ToolState = "pending"
	ToolRunning   ToolState = "running"
	ToolCompleted ToolState = "completed"
	ToolError     ToolState = "error"
)

// DefaultToolName is used when a result arrives for an unseen tool call.
const DefaultToolName = "tool"

// ToolInvocation is a backend action reported on an assistant message.
type ToolInvocation struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	State      ToolState      `json:"state"`
	Result     any            `json:"result,omitempty"`
}

// ChatMessage is one entry in the conversation.
type ChatMessage struct {
	ID              string           `json:"id"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	CreatedAt       time.Time        `json:"createdAt"`
	IsStreaming     bool             `json:"isStreaming"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
}

// ToolPatch describes a merge into a tool invocation. Zero fields are left
// untouched; HasResult distinguishes a nil result from no result.
type ToolPatch struct {
	ToolName  string
	Args      map[string]any
	State     ToolState
	Result    any
	HasResult bool
}

// ChatState is the full chat store state.
type ChatState struct {
	Messages  []ChatMessage
	IsLoading bool
	ThreadID  *string
	Error     string
}

// ChatStore owns the conversation state.
type ChatStore struct {
	mu    sync.RWMutex
	state ChatState
	hub   hub[ChatState]
}

// NewChatStore creates an empty chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{}
}

// Update applies fn to the state under the write lock and notifies
// subscribers. It is the only way state changes.
func (s *ChatStore) Update(fn func(*ChatState)) {
	s.hub.commit(func() ChatState {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(&s.state)
		return s.state.clone()
	})
}

// Snapshot returns a deep copy of the current state.
func (s *ChatStore) Snapshot() ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn for post-update snapshots and returns an
// unsubscribe function.
func (s *ChatStore) Subscribe(fn func(ChatState)) func() {
	return s.hub.subscribe(fn)
}

// Messages returns a copy of the message list.
func (s *ChatStore) Messages() []ChatMessage {
	return s.Snapshot().Messages
}

// IsLoading reports whether a response is in flight.
func (s *ChatStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

// Err returns the surfaced error message, or "" when there is none.
func (s *ChatStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error
}

// ThreadID returns the active thread id, or nil before one is announced.
func (s *ChatStore) ThreadID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ThreadID == nil {
		return nil
	}
	id := *s.state.ThreadID
	return &id
}

// AddMessage appends a message.
func (s *ChatStore) AddMessage(msg ChatMessage) {
	s.Update(func(st *ChatState) {
		st.Messages = append(st.Messages, msg)
	})
}

// UpdateLast applies fn to the last message. It is a no-op on an empty list.
func (s *ChatStore) UpdateLast(fn func(*ChatMessage)) {
	s.Update(func(st *ChatState) {
		if len(st.Messages) == 0 {
			return
		}
		fn(&st.Messages[len(st.Messages)-1])
	})
}

// UpsertTool merges patch into the last message's invocation with the given
// id, appending a new invocation when the id is unseen.
func (s *ChatStore) UpsertTool(toolCallID string, patch ToolPatch) {
	s.UpdateLast(func(msg *ChatMessage) {
		msg.ToolInvocations = upsertTool(msg.ToolInvocations, toolCallID, patch)
	})
}

func upsertTool(list []ToolInvocation, toolCallID string, patch ToolPatch) []ToolInvocation {
	for i := range list {
		if list[i].ToolCallID != toolCallID {
			continue
		}
		inv := &list[i]
		if patch.ToolName != "" {
			inv.ToolName = patch.ToolName
		}
		if patch.Args != nil {
			inv.Args = patch.Args
		}
		if patch.State != "" {
			inv.State = patch.State
		}
		if patch.HasResult {
			inv.Result = patch.Result
		}
		return list
	}

	inv := ToolInvocation{
		ToolCallID: toolCallID,
		ToolName:   patch.ToolName,
		Args:       patch.Args,
		State:      patch.State,
	}
	if inv.ToolName == "" {
		inv.ToolName = DefaultToolName
	}
	if inv.Args == nil {
		inv.Args = map[string]any{}
	}
	if inv.State == "" {
		inv.State = ToolRunning
	}
	if patch.HasResult {
		inv.Result = patch.Result
	}
	return append(list, inv)
}

// SetLoading sets the global loading flag.
func (s *ChatStore) SetLoading(loading bool) {
	s.Update(func(st *ChatState) { st.IsLoading = loading })
}

// SetError surfaces msg; an empty msg clears the error.
func (s *ChatStore) SetError(msg string) {
	s.Update(func(st *ChatState) { st.Error = msg })
}

// SetThreadID records the conversation thread id.
func (s *ChatStore) SetThreadID(threadID string) {
	s.Update(func(st *ChatState) { st.ThreadID = &threadID })
}

// ClearMessages empties the message list. Thread id and error survive.
func (s *ChatStore) ClearMessages() {
	s.Update(func(st *ChatState) { st.Messages = nil })
}

func (st ChatState) clone() ChatState {
	out := st
	if st.ThreadID != nil {
		id := *st.ThreadID
		out.ThreadID = &id
	}
	if st.Messages != nil {
		out.Messages = make([]ChatMessage, len(st.Messages))
		for i, msg := range st.Messages {
			out.Messages[i] = msg
			if msg.ToolInvocations != nil {
				tools := make([]ToolInvocation, len(msg.ToolInvocations))
				for j, inv := range msg.ToolInvocations {
					inv.Args = maps.Clone(inv.Args)
					tools[j] = inv
				}
				out.Messages[i].ToolInvocations = tools
			}
		}
	}
	return out
}
