// Package logging provides leveled logging and per-time-step tracing.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceLogger writing unit group state as JSONL (.settle/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/settle/internal/monitor"
)

// LevelTrace is a custom slog level below Debug. Network state transitions
// are logged at this level.
const LevelTrace = slog.LevelDebug - 4

// Levels lists the accepted level names, most verbose first.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// ParseLevel maps a level name to a slog.Level (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a level. The empty string is valid
// and means info.
func ValidLevel(s string) bool {
	if s == "" {
		return true
	}
	for _, l := range Levels {
		if strings.EqualFold(s, l) {
			return true
		}
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TraceFile is the name of the trace file inside the trace directory.
const TraceFile = "trace.jsonl"

// TraceLogger writes one JSONL line per observed unit group state. It
// implements monitor.Monitor and is safe for concurrent use. A nil
// TraceLogger is safe to use; all methods are no-ops on nil receiver.
type TraceLogger struct {
	mu    sync.Mutex
	w     io.Writer
	file  *os.File
	lines int
}

// NewTraceLogger creates a trace logger writing to dir/trace.jsonl.
// Below debug verbosity it returns nil and no file is created. It also
// returns nil if the file cannot be opened.
func NewTraceLogger(dir string, level string) *TraceLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &TraceLogger{w: f, file: f}
}

// NewTraceWriter creates a trace logger writing to w.
func NewTraceWriter(w io.Writer) *TraceLogger {
	return &TraceLogger{w: w}
}

// traceEntry is one JSONL line.
type traceEntry struct {
	Time    string    `json:"time"`
	Layer   string    `json:"layer"`
	Phase   string    `json:"phase,omitempty"`
	Step    int       `json:"step"`
	Clamped bool      `json:"clamped"`
	GE      []float64 `json:"ge"`
	GI      []float64 `json:"gi"`
	VM      []float64 `json:"vm"`
	Act     []float64 `json:"act"`
}

// Observe writes s as a single JSONL line. Safe to call on nil receiver.
func (tl *TraceLogger) Observe(s monitor.Snapshot) {
	if tl == nil {
		return
	}
	entry := traceEntry{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Layer:   s.Layer,
		Phase:   s.Phase,
		Step:    s.Step,
		Clamped: s.Clamped,
		GE:      s.Fields[monitor.FieldExcitatory],
		GI:      s.Fields[monitor.FieldInhibitory],
		VM:      s.Fields[monitor.FieldPotential],
		Act:     s.Fields[monitor.FieldActivity],
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.w == nil {
		return
	}
	if _, err := tl.w.Write(data); err == nil {
		tl.lines++
	}
}

// Lines returns the number of lines written. Safe to call on nil receiver.
func (tl *TraceLogger) Lines() int {
	if tl == nil {
		return 0
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.lines
}

// Close closes the underlying file, if any, and stops further writes.
// Safe to call on nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
	tl.w = nil
}

var _ monitor.Monitor = (*TraceLogger)(nil)
