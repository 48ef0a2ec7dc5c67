package console

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// DebugEntry is a parsed debug log line.
type DebugEntry struct {
	Time     string // e.g. "11:27:53.123456"
	Category string // e.g. "capture", "transcribe", "switch"
	Message  string
}

// LogWriter is an io.Writer for a log.Logger that re-renders each
// "[DEBUG] HH:MM:SS.micros message" line as "time category message" with
// theme colours.
type LogWriter struct {
	mu       sync.Mutex
	w        io.Writer
	time     lipgloss.Style
	category lipgloss.Style
	msg      lipgloss.Style
}

// NewLogWriter creates a LogWriter that writes to w.
func NewLogWriter(w io.Writer, t Theme) *LogWriter {
	r := lipgloss.NewRenderer(w)
	return &LogWriter{
		w:        w,
		time:     r.NewStyle().Foreground(t.Dimmed),
		category: r.NewStyle().Foreground(t.Warning),
		msg:      r.NewStyle().Foreground(t.Dimmed),
	}
}

// Write implements io.Writer. A log.Logger issues one Write per entry.
func (w *LogWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		e := parseLine(line)
		out := w.category.Render(padRight(e.Category, 10)) + " " + w.msg.Render(e.Message)
		if e.Time != "" {
			out = w.time.Render(e.Time) + " " + out
		}
		if _, err := io.WriteString(w.w, out+"\n"); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// parseLine extracts time, category, and message from a log line.
// Expected format: "[DEBUG] HH:MM:SS.micros message text"
func parseLine(line string) DebugEntry {
	msg := strings.TrimPrefix(line, "[DEBUG] ")

	entry := DebugEntry{Category: "debug", Message: msg}
	if len(msg) >= 8 && msg[2] == ':' && msg[5] == ':' {
		if i := strings.IndexByte(msg, ' '); i > 0 {
			entry.Time = msg[:i]
			msg = msg[i+1:]
		}
	}

	entry.Category, entry.Message = inferCategory(msg), msg
	return entry
}

// inferCategory determines the log category from the message prefix.
func inferCategory(msg string) string {
	lower := strings.ToLower(msg)

	switch {
	case strings.HasPrefix(lower, "capture"):
		return "capture"
	case strings.HasPrefix(lower, "transcri"):
		return "transcribe"
	case strings.HasPrefix(lower, "switch"), strings.HasPrefix(lower, "sleep"), strings.HasPrefix(lower, "state"):
		return "switch"
	case strings.HasPrefix(lower, "device"), strings.HasPrefix(lower, "filter"):
		return "device"
	case strings.HasPrefix(lower, "portaudio"):
		return "audio"
	case strings.HasPrefix(lower, "config"):
		return "config"
	case strings.HasPrefix(lower, "chime"):
		return "chime"
	default:
		return "debug"
	}
}
