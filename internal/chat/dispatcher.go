package chat

import (
	"strings"

	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
	"github.com/arcreactor/workspace/internal/store"
)

// Dispatcher applies inbound text to the stores. It owns the line buffer
// and the tool-call name map, so it must only be used from one goroutine.
type Dispatcher struct {
	chat      *store.ChatStore
	workspace *store.WorkspaceStore
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	splitter  Splitter
	toolNames map[string]string
	handlers  [numCodes]func(payload string)
}

// NewDispatcher creates a dispatcher writing to chat and workspace.
func NewDispatcher(chat *store.ChatStore, workspace *store.WorkspaceStore, logger *zap.Logger, metrics *monitoring.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics(nil)
	}

	d := &Dispatcher{
		chat:      chat,
		workspace: workspace,
		logger:    logger,
		metrics:   metrics,
		toolNames: make(map[string]string),
	}
	d.handlers = [numCodes]func(string){
		CodeText:        d.onText,
		CodeToolCall:    d.onToolCall,
		CodeToolResult:  d.onToolResult,
		CodeFinish:      d.onFinish,
		CodeErrorFinish: d.onFinish,
		CodeThreadID:    d.onThreadID,
	}
	return d
}

// HandleMessage processes one socket text message.
func (d *Dispatcher) HandleMessage(data string) {
	if data == "" {
		return
	}
	if ctrl, ok := ParseControl(data); ok {
		if ctrl.Type == ControlError {
			msg := ctrl.Message
			if msg == "" {
				msg = ErrMsgUnknownError
			}
			d.chat.SetError(msg)
			d.chat.SetLoading(false)
		}
		return
	}
	d.splitter.Feed(data, d.HandleLine)
}

// HandleLine processes one complete protocol line.
func (d *Dispatcher) HandleLine(line string) {
	if line == "" {
		return
	}
	frame, ok := ParseLine(line)
	if !ok {
		d.drop("malformed", line)
		return
	}

	handle := d.handlers[frame.Code]
	if handle == nil {
		d.drop("unknown_code", line)
		return
	}
	d.metrics.RecordFrame(frame.Code.String())
	handle(frame.Payload)
}

// Reset drops the partial line buffer. Called on every new connection.
func (d *Dispatcher) Reset() {
	d.splitter.Reset()
}

func (d *Dispatcher) drop(reason, line string) {
	d.metrics.RecordDropped(reason)
	if ce := d.logger.Check(zap.DebugLevel, "dropping stream line"); ce != nil {
		if len(line) > 64 {
			line = line[:64]
		}
		ce.Write(zap.String("reason", reason), zap.String("line", line))
	}
}

func (d *Dispatcher) onText(payload string) {
	text := DecodeText(payload)
	d.chat.UpdateLast(func(m *store.ChatMessage) {
		m.Content += text
		m.IsStreaming = true
	})
}

func (d *Dispatcher) onToolCall(payload string) {
	call, err := Decode[ToolCall](payload)
	if err != nil {
		d.drop("bad_payload", payload)
		return
	}
	d.toolNames[call.ToolCallID] = call.ToolName
	d.chat.UpsertTool(call.ToolCallID, store.ToolPatch{
		ToolName: call.ToolName,
		Args:     call.Args,
		State:    store.ToolRunning,
	})
}

func (d *Dispatcher) onToolResult(payload string) {
	res, err := Decode[ToolResult](payload)
	if err != nil {
		d.drop("bad_payload", payload)
		return
	}
	d.chat.UpsertTool(res.ToolCallID, store.ToolPatch{
		State:     store.ToolCompleted,
		Result:    res.Result,
		HasResult: true,
	})

	text, isText := res.Result.(string)
	if !isText || d.workspace == nil {
		return
	}
	name := d.toolNames[res.ToolCallID]
	if strings.Contains(name, "samplesheet") {
		d.workspace.SetSamplesheet(text)
	}
	if strings.Contains(name, "config") {
		d.workspace.SetConfig(text)
	}
}

func (d *Dispatcher) onFinish(string) {
	d.chat.UpdateLast(func(m *store.ChatMessage) { m.IsStreaming = false })
	d.chat.SetLoading(false)
}

func (d *Dispatcher) onThreadID(payload string) {
	ann, err := Decode[ThreadAnnouncement](payload)
	if err != nil {
		d.drop("bad_payload", payload)
		return
	}
	if ann.MessageID != "" {
		d.chat.SetThreadID(ann.MessageID)
	}
}
