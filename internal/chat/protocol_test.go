package chat

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		ok      bool
		code    Code
		payload string
	}{
		{`0:"hi"`, true, CodeText, `"hi"`},
		{`data: 0:"hi"`, true, CodeText, `"hi"`},
		{`data:9:{}`, true, CodeToolCall, `{}`},
		{`a:{"toolCallId":"1"}`, true, CodeToolResult, `{"toolCallId":"1"}`},
		{`d:{}`, true, CodeFinish, `{}`},
		{`e:{}`, true, CodeErrorFinish, `{}`},
		{`f:{"messageId":"m"}`, true, CodeThreadID, `{"messageId":"m"}`},
		{`3:"backend error"`, true, CodeUnknown, `"backend error"`},
		{`z:`, true, CodeUnknown, ``},
		{`hello`, false, 0, ``},
		{`00:"x"`, false, 0, ``},
		{`0`, false, 0, ``},
		{``, false, 0, ``},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			frame, ok := ParseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.code, frame.Code)
			assert.Equal(t, tt.payload, frame.Payload)
		})
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "text", CodeOf('0').String())
	assert.Equal(t, "thread_id", CodeOf('f').String())
	assert.Equal(t, "unknown", CodeOf('x').String())
	assert.Equal(t, "unknown", Code(200).String())
}

func TestDecodeText(t *testing.T) {
	tests := map[string]string{
		`"hello"`:        "hello",
		`"line\nbreak"`:  "line\nbreak",
		`"unterminated`:  "unterminated",
		`raw text`:       "raw text",
		`""quoted""`:     `"quoted"`,
		`123`:            "123",
		`null`:           "null",
		`"café"`:         "café",
		`"tab\there"`:    "tab\there",
		`"  spaced  "`:   "  spaced  ",
		`{"not":"text"}`: `{"not":"text"}`,
	}
	for payload, want := range tests {
		assert.Equal(t, want, DecodeText(payload), payload)
	}
}

func TestParseControl(t *testing.T) {
	c, ok := ParseControl(`{"type":"error","message":"agent failed"}`)
	require.True(t, ok)
	assert.Equal(t, Control{Type: ControlError, Message: "agent failed"}, c)

	c, ok = ParseControl(` {"type":"connected"}`)
	require.True(t, ok)
	assert.Equal(t, ControlConnected, c.Type)

	for _, data := range []string{`{"type":"other"}`, `0:"x"`, `{broken`, `"error"`, `{}`} {
		_, ok := ParseControl(data)
		assert.False(t, ok, data)
	}
}

func TestDecodeRejectsNull(t *testing.T) {
	_, err := Decode[ToolCall]("null")
	assert.Error(t, err)

	call, err := Decode[ToolCall](`{"toolCallId":"c1","toolName":"get_samplesheet","args":{"run":"r1"}}`)
	require.NoError(t, err)
	assert.Equal(t, "c1", call.ToolCallID)
	assert.Equal(t, map[string]any{"run": "r1"}, call.Args)
}

func TestEncodeMessage(t *testing.T) {
	data, err := EncodeMessage("hi", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","content":"hi","thread_id":null}`, string(data))

	thread := "thread-1"
	data, err = EncodeMessage("again", &thread)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","content":"again","thread_id":"thread-1"}`, string(data))
}

func TestEncodeFrameParsesBack(t *testing.T) {
	line, err := EncodeFrame(TagToolCall, ToolCall{ToolCallID: "t1", ToolName: "get_samplesheet", Args: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), line[len(line)-1])

	frame, ok := ParseLine(line[:len(line)-1])
	require.True(t, ok)
	assert.Equal(t, CodeToolCall, frame.Code)

	call, err := Decode[ToolCall](frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, "get_samplesheet", call.ToolName)
}

func TestSplitter(t *testing.T) {
	var s Splitter
	var lines []string
	collect := func(line string) { lines = append(lines, line) }

	s.Feed(`0:"he`, collect)
	assert.Empty(t, lines)
	assert.Equal(t, `0:"he`, s.Pending())

	s.Feed("llo\"\n", collect)
	require.Equal(t, []string{`0:"hello"`}, lines)
	assert.Equal(t, "hello", DecodeText(lines[0][2:]))
	assert.Empty(t, s.Pending())

	lines = nil
	s.Feed("d:{}\r\n\n  f:{}  \n9:", collect)
	assert.Equal(t, []string{"d:{}", "", "f:{}"}, lines)
	assert.Equal(t, "9:", s.Pending())

	s.Reset()
	assert.Empty(t, s.Pending())
}

func TestSplitterOneStepPerLine(t *testing.T) {
	stream := "0:\"a\"\n0:\"b\"\n0:\"c\"\nd:{}\n"

	// Any chunking yields the same lines.
	for size := 1; size <= len(stream); size++ {
		var s Splitter
		var lines []string
		for i := 0; i < len(stream); i += size {
			end := min(i+size, len(stream))
			s.Feed(stream[i:end], func(line string) { lines = append(lines, line) })
		}
		assert.Equal(t, []string{`0:"a"`, `0:"b"`, `0:"c"`, "d:{}"}, lines, "chunk size %d", size)
	}
}

func TestResolveURL(t *testing.T) {
	page := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u
	}

	got, err := ResolveURL("wss://chat.example.com/ws", page("http://localhost:3000"))
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws", got)

	got, err = ResolveURL("", page("http://localhost:3000/workspace"))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3000/api/chat/ws", got)

	got, err = ResolveURL("  ", page("https://arc.example.org"))
	require.NoError(t, err)
	assert.Equal(t, "wss://arc.example.org/api/chat/ws", got)

	_, err = ResolveURL("", nil)
	assert.Error(t, err)
}
