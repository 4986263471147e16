package chat

import "time"

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
	StateClosed
)

var stateNames = []string{"idle", "connecting", "open", "reconnecting", "failed", "closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Event drives the machine.
type Event int

const (
	// EventStart arms the initial connect delay.
	EventStart Event = iota
	// EventTimer fires when a scheduled dial is due.
	EventTimer
	// EventOpen reports a successful handshake.
	EventOpen
	// EventError reports a socket-level failure.
	EventError
	// EventClose reports that the socket closed or the dial failed.
	EventClose
	// EventStop is a manual close.
	EventStop
)

// ActionKind tells the session what to do next.
type ActionKind int

const (
	ActionScheduleDial ActionKind = iota
	ActionDial
	ActionCloseSocket
	ActionCancelTimer
	ActionSetError
	ActionClearError
	ActionClearLoading
)

// Action is one side effect requested by a transition.
type Action struct {
	Kind    ActionKind
	Delay   time.Duration
	Message string
}

// Surfaced connection errors.
const (
	ErrMsgConnection   = "Chat connection error"
	ErrMsgUnavailable  = "Chat connection is not available."
	ErrMsgReconnect    = "Unable to reconnect to chat stream"
	ErrMsgUnknownError = "Unknown error"
)

// Machine is the reconnect policy. It is not safe for concurrent use; the
// session loop owns it.
type Machine struct {
	state          State
	attempts       int
	manual         bool
	maxReconnects  int
	initialDelay   time.Duration
	reconnectDelay time.Duration
}

// NewMachine creates a machine in StateIdle.
func NewMachine(initialDelay, reconnectDelay time.Duration, maxReconnects int) *Machine {
	return &Machine{
		maxReconnects:  maxReconnects,
		initialDelay:   initialDelay,
		reconnectDelay: reconnectDelay,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Attempts returns the consecutive reconnect attempts spent.
func (m *Machine) Attempts() int { return m.attempts }

// Manual reports whether the connection was closed on request.
func (m *Machine) Manual() bool { return m.manual }

// Step applies ev and returns the side effects to perform, in order.
func (m *Machine) Step(ev Event) []Action {
	switch ev {
	case EventStart:
		if m.state != StateIdle || m.manual {
			return nil
		}
		return []Action{{Kind: ActionScheduleDial, Delay: m.initialDelay}}

	case EventTimer:
		if m.manual || (m.state != StateIdle && m.state != StateReconnecting) {
			return nil
		}
		m.state = StateConnecting
		return []Action{{Kind: ActionDial}}

	case EventOpen:
		if m.state != StateConnecting {
			return []Action{{Kind: ActionCloseSocket}}
		}
		m.state = StateOpen
		m.attempts = 0
		return []Action{{Kind: ActionClearError}}

	case EventError:
		if m.manual || (m.state != StateConnecting && m.state != StateOpen) {
			return nil
		}
		return []Action{{Kind: ActionSetError, Message: ErrMsgConnection}}

	case EventClose:
		if m.manual || (m.state != StateConnecting && m.state != StateOpen) {
			return nil
		}
		if m.attempts >= m.maxReconnects {
			m.state = StateFailed
			return []Action{{Kind: ActionSetError, Message: ErrMsgReconnect}}
		}
		m.attempts++
		m.state = StateReconnecting
		return []Action{{Kind: ActionScheduleDial, Delay: m.reconnectDelay}}

	case EventStop:
		if m.state == StateClosed {
			return nil
		}
		m.manual = true
		m.state = StateClosed
		return []Action{
			{Kind: ActionCancelTimer},
			{Kind: ActionCloseSocket},
			{Kind: ActionClearLoading},
		}
	}
	return nil
}
