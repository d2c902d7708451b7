// Package audit appends tool invocations and plugin connection events to an
// NDJSON file for compliance review.
package audit

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event names written in the "event" field.
const (
	EventTool             = "tool"
	EventPluginConnect    = "plugin_connect"
	EventPluginDisconnect = "plugin_disconnect"
	EventError            = "error"
)

// Log writes one JSON object per line. A nil *Log discards everything.
type Log struct {
	mu     sync.Mutex
	out    zerolog.Logger
	closer io.Closer
}

// Open appends to the file at path, creating it when missing. An empty path
// returns a nil *Log, which is a valid no-op logger.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New writes audit lines to w.
func New(w io.Writer) *Log {
	return &Log{out: zerolog.New(w)}
}

// Tool records a completed bridge request.
func (l *Log) Tool(method string, err error, dur time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := l.out.Log().
		Str("ts", now()).
		Str("event", EventTool).
		Str("method", method).
		Bool("success", err == nil).
		Int64("durationMs", dur.Milliseconds())
	if err != nil {
		ev = ev.Str("error", err.Error())
	}
	ev.Send()
}

// PluginConnect records a plugin attaching to the bridge.
func (l *Log) PluginConnect() { l.event(EventPluginConnect, "") }

// PluginDisconnect records a plugin detaching from the bridge.
func (l *Log) PluginDisconnect() { l.event(EventPluginDisconnect, "") }

// Error records a bridge-level failure not tied to a request.
func (l *Log) Error(msg string) { l.event(EventError, msg) }

func (l *Log) event(name, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := l.out.Log().Str("ts", now()).Str("event", name)
	if msg != "" {
		ev = ev.Str("error", msg)
	}
	ev.Send()
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
