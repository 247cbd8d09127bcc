package logging

import (
	"strings"
	"sync"
)

// DefaultRecentLines is how many log lines Recent keeps.
const DefaultRecentLines = 200

// LineBuffer is a thread-safe writer that keeps the last N written lines.
type LineBuffer struct {
	mu    sync.RWMutex
	lines []string
	max   int
}

// Recent captures the server log for the status API.
var Recent = NewLineBuffer(DefaultRecentLines)

// NewLineBuffer creates a buffer holding at most limit lines.
func NewLineBuffer(limit int) *LineBuffer {
	if limit < 1 {
		limit = 1
	}
	return &LineBuffer{max: limit}
}

// Write implements io.Writer. Each call is one slog record.
func (w *LineBuffer) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
	if over := len(w.lines) - w.max; over > 0 {
		w.lines = append(w.lines[:0:0], w.lines[over:]...)
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (w *LineBuffer) Lines() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.lines))
	copy(out, w.lines)
	return out
}

// LastLine returns the most recent log line.
func (w *LineBuffer) LastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}
