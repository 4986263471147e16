package chat

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// Code is a stream frame tag.
type Code uint8

const (
	CodeUnknown Code = iota
	CodeText
	CodeToolCall
	CodeToolResult
	CodeFinish
	CodeErrorFinish
	CodeThreadID

	numCodes
)

// Wire tags.
const (
	TagText        byte = '0'
	TagToolCall    byte = '9'
	TagToolResult  byte = 'a'
	TagFinish      byte = 'd'
	TagErrorFinish byte = 'e'
	TagThreadID    byte = 'f'
)

var codeByTag = [256]Code{
	TagText:        CodeText,
	TagToolCall:    CodeToolCall,
	TagToolResult:  CodeToolResult,
	TagFinish:      CodeFinish,
	TagErrorFinish: CodeErrorFinish,
	TagThreadID:    CodeThreadID,
}

var codeNames = [numCodes]string{
	CodeUnknown:     "unknown",
	CodeText:        "text",
	CodeToolCall:    "tool_call",
	CodeToolResult:  "tool_result",
	CodeFinish:      "finish",
	CodeErrorFinish: "error_finish",
	CodeThreadID:    "thread_id",
}

// CodeOf maps a wire tag to its Code.
func CodeOf(tag byte) Code {
	return codeByTag[tag]
}

func (c Code) String() string {
	if c >= numCodes {
		return codeNames[CodeUnknown]
	}
	return codeNames[c]
}

// Frame is one decoded protocol line.
type Frame struct {
	Tag     byte
	Code    Code
	Payload string
}

var dataPrefix = regexp.MustCompile(`^data:\s*`)

// ParseLine splits a trimmed line into a frame. An SSE-style "data:"
// prefix is tolerated. Lines without a one-character code and a colon
// report false.
func ParseLine(line string) (Frame, bool) {
	if strings.HasPrefix(line, "data:") {
		line = dataPrefix.ReplaceAllString(line, "")
	}
	if len(line) < 2 || line[1] != ':' {
		return Frame{}, false
	}
	return Frame{Tag: line[0], Code: CodeOf(line[0]), Payload: line[2:]}, true
}

// EncodeFrame renders one newline-terminated protocol line.
func EncodeFrame(tag byte, payload any) (string, error) {
	data, err := sonic.MarshalString(payload)
	if err != nil {
		return "", fmt.Errorf("encode frame %q: %w", tag, err)
	}
	return string(tag) + ":" + data + "\n", nil
}

// Control is a JSON control message from the server.
type Control struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Control message types.
const (
	ControlError     = "error"
	ControlConnected = "connected"
)

// ParseControl recognises error and connected control objects. Anything
// else, including other JSON, belongs to the line protocol.
func ParseControl(data string) (Control, bool) {
	if !strings.HasPrefix(strings.TrimSpace(data), "{") {
		return Control{}, false
	}
	var c Control
	if err := sonic.UnmarshalString(data, &c); err != nil {
		return Control{}, false
	}
	if c.Type != ControlError && c.Type != ControlConnected {
		return Control{}, false
	}
	return c, true
}

// DecodeText decodes a text delta payload. A JSON string is unquoted;
// anything else falls back to the raw payload minus one surrounding quote
// on each end.
func DecodeText(payload string) string {
	var v any
	if err := sonic.UnmarshalString(payload, &v); err == nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	payload = strings.TrimPrefix(payload, `"`)
	return strings.TrimSuffix(payload, `"`)
}

// ToolCall is the payload of a tool-call start frame.
type ToolCall struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
}

// ToolResult is the payload of a tool-call result frame.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

// ThreadAnnouncement is the payload of a thread id frame.
type ThreadAnnouncement struct {
	MessageID string `json:"messageId"`
}

var errNullPayload = errors.New("null payload")

// Decode unmarshals a structured frame payload. A JSON null is an error.
func Decode[T any](payload string) (T, error) {
	var v T
	if strings.TrimSpace(payload) == "null" {
		return v, errNullPayload
	}
	err := sonic.UnmarshalString(payload, &v)
	return v, err
}

// Envelope is the client-to-server message.
type Envelope struct {
	Type     string  `json:"type"`
	Content  string  `json:"content"`
	ThreadID *string `json:"thread_id"`
}

// EncodeMessage builds the outbound message envelope.
func EncodeMessage(content string, threadID *string) ([]byte, error) {
	return sonic.Marshal(Envelope{Type: "message", Content: content, ThreadID: threadID})
}
