package chat

import "strings"

// Splitter reassembles newline-terminated lines from arbitrary chunks.
type Splitter struct {
	buf strings.Builder
}

// Feed appends chunk and calls fn with each completed line, trimmed, in
// order. A trailing partial line stays buffered.
func (s *Splitter) Feed(chunk string, fn func(line string)) {
	for {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			s.buf.WriteString(chunk)
			return
		}

		line := chunk[:i]
		if s.buf.Len() > 0 {
			s.buf.WriteString(line)
			line = s.buf.String()
			s.buf.Reset()
		}
		chunk = chunk[i+1:]

		fn(strings.TrimSpace(line))
	}
}

// Pending returns the buffered partial line.
func (s *Splitter) Pending() string {
	return s.buf.String()
}

// Reset drops any buffered partial line.
func (s *Splitter) Reset() {
	s.buf.Reset()
}
