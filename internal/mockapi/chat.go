package mockapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/chat"
	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Script produces the protocol lines answering one user message. Each
// line is newline terminated.
type Script func(content, threadID string) []string

// Sample tool outputs returned by the default script.
const (
	SampleSheet = "sample,fastq_1,fastq_2,expected_cells\n" +
		"PBMC_1,gs://arc-demo/PBMC_1_R1.fastq.gz,gs://arc-demo/PBMC_1_R2.fastq.gz,10000\n" +
		"PBMC_2,gs://arc-demo/PBMC_2_R1.fastq.gz,gs://arc-demo/PBMC_2_R2.fastq.gz,8000\n"
	SampleConfig = "process {\n  executor = 'google-batch'\n}\n"
)

// DefaultScript streams a short echo. Mentions of "samplesheet" or
// "config" add the matching tool call; "fail" ends the turn with an error
// frame the way the real agent reports exceptions.
func DefaultScript(content, threadID string) []string {
	var lines []string
	add := func(tag byte, payload any) {
		line, err := chat.EncodeFrame(tag, payload)
		if err == nil {
			lines = append(lines, line)
		}
	}

	add(chat.TagThreadID, chat.ThreadAnnouncement{MessageID: threadID})

	lower := strings.ToLower(content)
	if strings.Contains(lower, "fail") {
		add('3', "agent failed: "+content)
		add(chat.TagFinish, map[string]string{"finishReason": "error"})
		return lines
	}

	for _, word := range strings.SplitAfter("You said: "+content, " ") {
		add(chat.TagText, word)
	}

	tool := func(name string, result string) {
		callID := "call_" + uuid.NewString()[:8]
		add(chat.TagToolCall, chat.ToolCall{ToolCallID: callID, ToolName: name, Args: map[string]any{}})
		add(chat.TagToolResult, chat.ToolResult{ToolCallID: callID, Result: result})
	}
	if strings.Contains(lower, "samplesheet") {
		tool("get_samplesheet", SampleSheet)
	}
	if strings.Contains(lower, "config") {
		tool("generate_config", SampleConfig)
	}

	add(chat.TagFinish, map[string]string{"finishReason": "stop"})
	return lines
}

type chatHandler struct {
	script    Script
	chunkSize int
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// chatConn serializes writes to one socket.
type chatConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *chatConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *chatHandler) handleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	conn := &chatConn{conn: ws}
	if err := h.sendControl(conn, chat.Control{Type: chat.ControlConnected}); err != nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("chat socket closed", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", "message")

		var msg chat.Envelope
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "Invalid JSON")
			continue
		}
		if msg.Type != "message" {
			h.sendError(conn, "Invalid message type")
			continue
		}
		if msg.Content == "" {
			h.sendError(conn, "Message content required")
			continue
		}

		threadID := ""
		if msg.ThreadID != nil {
			threadID = *msg.ThreadID
		}
		if threadID == "" {
			threadID = "thread-" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}

		h.logger.Debug("chat message", zap.String("thread_id", threadID), zap.Int("length", len(msg.Content)))
		if err := h.stream(conn, h.script(msg.Content, threadID)); err != nil {
			h.logger.Debug("chat stream aborted", zap.Error(err))
			return
		}
	}
}

// stream writes one socket message per line, or re-cuts the joined lines
// into chunkSize pieces when set.
func (h *chatHandler) stream(conn *chatConn, lines []string) error {
	chunks := lines
	if h.chunkSize > 0 {
		chunks = cut(strings.Join(lines, ""), h.chunkSize)
	}
	for _, chunk := range chunks {
		if err := conn.write([]byte(chunk)); err != nil {
			return err
		}
		h.metrics.RecordWSMessage("out", "text")
	}
	return nil
}

func cut(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func (h *chatHandler) sendControl(conn *chatConn, msg chat.Control) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	h.metrics.RecordWSMessage("out", msg.Type)
	return conn.write(data)
}

func (h *chatHandler) sendError(conn *chatConn, message string) {
	if err := h.sendControl(conn, chat.Control{Type: chat.ControlError, Message: message}); err != nil {
		h.logger.Debug("send chat error failed", zap.Error(err))
	}
}
