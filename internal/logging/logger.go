package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is a handle on a shared output core. Loggers derived with With
// share the core's debug switch, terminal output, file sink and
// subscribers, and add their own fields to every event.
type Logger struct {
	core  *core
	attrs []slog.Attr
}

type core struct {
	debugEnabled atomic.Bool
	terminalOut  atomic.Bool
	pretty       bool
	out          io.Writer

	mu          sync.RWMutex
	fileSink    *fileSink
	nextID      int
	subscribers map[int]func(Event)
}

type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

func New(debug bool) *Logger {
	c := &core{
		pretty:      shouldPrettyPrint(),
		out:         os.Stderr,
		subscribers: map[int]func(Event){},
	}
	c.debugEnabled.Store(debug)
	c.terminalOut.Store(true)
	return &Logger{core: c}
}

// Discard returns a logger that never writes to the terminal. Tests use it.
func Discard() *Logger {
	logger := New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// With returns a logger that adds fields to every event. Fields passed at
// the call site win over fields with the same key.
func (l *Logger) With(fields ...slog.Attr) *Logger {
	if l == nil {
		return nil
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{core: l.core, attrs: append(slices.Clip(l.attrs), fields...)}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	// Hidden debug lines still reach the file sink.
	l.log(slog.LevelDebug, msg, fields, l.core.debugEnabled.Load())
}

func (l *Logger) Info(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelInfo, msg, fields, true)
}

func (l *Logger) Warn(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelWarn, msg, fields, true)
}

func (l *Logger) Error(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelError, msg, fields, true)
}

func (l *Logger) SetDebugEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.core.debugEnabled.Store(enabled)
}

func (l *Logger) DebugEnabled() bool {
	return l != nil && l.core.debugEnabled.Load()
}

func (l *Logger) SetTerminalOutputEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.core.terminalOut.Store(enabled)
}

// EnableFilePersistence starts writing every event, debug included, to a
// rotating JSONL file under dir. An empty dir selects DefaultLogDirPath.
func (l *Logger) EnableFilePersistence(dir string, maxBytes int64) error {
	if l == nil {
		return nil
	}
	sink, err := newFileSink(dir, maxBytes)
	if err != nil {
		return err
	}
	c := l.core
	c.mu.Lock()
	old := c.fileSink
	c.fileSink = sink
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close stops file persistence. Terminal output and subscribers keep
// working.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	c := l.core
	c.mu.Lock()
	sink := c.fileSink
	c.fileSink = nil
	c.mu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.Close()
}

// Subscribe registers fn for every published event and returns the
// function that removes it.
func (l *Logger) Subscribe(fn func(Event)) func() {
	if l == nil {
		panic("logging.Logger.Subscribe: logger must not be nil")
	}
	if fn == nil {
		panic("logging.Logger.Subscribe: callback must not be nil")
	}
	c := l.core
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (l *Logger) log(level slog.Level, msg string, attrs []slog.Attr, publish bool) {
	if len(l.attrs) > 0 {
		attrs = append(slices.Clip(l.attrs), attrs...)
	}
	l.core.write(Event{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  attrsToMap(attrs),
	}, publish)
}

func (c *core) write(event Event, publish bool) {
	c.mu.RLock()
	sink := c.fileSink
	c.mu.RUnlock()
	if sink != nil {
		_ = sink.WriteEvent(event)
	}
	if !publish {
		return
	}
	if c.terminalOut.Load() {
		line := FormatEventLine(event)
		if c.pretty {
			line = FormatEventANSI(event)
		}
		_, _ = io.WriteString(c.out, line)
	}

	c.mu.RLock()
	callbacks := make([]func(Event), 0, len(c.subscribers))
	for _, cb := range c.subscribers {
		callbacks = append(callbacks, cb)
	}
	c.mu.RUnlock()
	for _, cb := range callbacks {
		cb(event)
	}
}
