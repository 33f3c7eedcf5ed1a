package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the surface collaborators log through.
type Logger interface {
	Error(component, action, msg string)
	Warn(component, action, msg string)
	Info(component, action, msg string)
	Debug(component, action, msg string)
	Trace(component, action, msg string)
	Log(component, action, msg string)
	WithData(data Fields) Logger
	WithContext(ctx Fields) Logger
	TrackError(err error, component, action string, ctx Fields)
	StartTimer(operation string, metadata Fields) string
	EndTimer(id string, extra Fields)
	TrackAPIRequest(method, url string, data Fields) string
	TrackAPIResponse(requestID string, status int, data Fields, duration time.Duration)
	TrackStateChange(component string, oldState, newState map[string]interface{}) map[string]StateChange
}

type LoggerConfig struct {
	// Config overrides DefaultConfig before Sources are consulted.
	Config ConfigPatch
	// Sources are applied in order, later sources win.
	Sources []SettingSource
	// Output receives console lines. Defaults to os.Stderr.
	Output    io.Writer
	Formatter Formatter
	// File enables the rotating JSONL sink used when logToFile is set.
	File       *FileSinkConfig
	Sanitizer  *Sanitizer
	Clock      func() time.Time
	BufferSize int
}

type state struct {
	mu          sync.Mutex
	cfg         DebugConfig
	buffer      *ring[LogEntry]
	timers      map[string]*PerformanceMetric
	subscribers map[int]func(LogEntry)
	nextSubID   int

	// outMu is taken before mu is released so sinks and subscribers see
	// entries in buffer order.
	outMu      sync.Mutex
	sinks      []Sink
	sanitizer  *Sanitizer
	now        func() time.Time
	started    time.Time
	sinkErrors atomic.Int64
}

// DebugLogger is a leveled structured log with a bounded in-memory buffer.
// Views returned by WithData and WithContext share its buffer, timers and
// configuration.
type DebugLogger struct {
	*state
	data    Fields
	context Fields
}

func New(cfg LoggerConfig) *DebugLogger {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = MaxBufferSize
	}

	sinks := []Sink{NewConsoleSink(cfg.Output, cfg.Formatter)}
	if cfg.File != nil {
		sinks = append(sinks, NewFileSink(*cfg.File))
	}

	st := &state{
		cfg:         resolveConfig(cfg.Config.Apply(DefaultConfig()), cfg.Sources),
		buffer:      newRing[LogEntry](size),
		timers:      make(map[string]*PerformanceMetric),
		subscribers: make(map[int]func(LogEntry)),
		sinks:       sinks,
		sanitizer:   cfg.Sanitizer,
		now:         clock,
		started:     clock(),
	}
	l := &DebugLogger{state: st}

	resolved := st.cfg
	if resolved.Enabled {
		l.WithData(Fields{"config": resolved}).Debug("logger", "initialize", "Debug logger initialized")
	}
	return l
}

func (l *DebugLogger) Error(component, action, msg string) {
	l.emit(ERROR, component, action, msg, nil, nil, nil)
}

func (l *DebugLogger) Warn(component, action, msg string) {
	l.emit(WARN, component, action, msg, nil, nil, nil)
}

func (l *DebugLogger) Info(component, action, msg string) {
	l.emit(INFO, component, action, msg, nil, nil, nil)
}

func (l *DebugLogger) Debug(component, action, msg string) {
	l.emit(DEBUG, component, action, msg, nil, nil, nil)
}

func (l *DebugLogger) Trace(component, action, msg string) {
	l.emit(TRACE, component, action, msg, nil, nil, nil)
}

// Log is an alias of Debug.
func (l *DebugLogger) Log(component, action, msg string) {
	l.emit(DEBUG, component, action, msg, nil, nil, nil)
}

func (l *DebugLogger) WithData(data Fields) Logger {
	return &DebugLogger{state: l.state, data: merged(l.data, data), context: l.context}
}

func (l *DebugLogger) WithContext(ctx Fields) Logger {
	return &DebugLogger{state: l.state, data: l.data, context: merged(l.context, ctx)}
}

// ShouldLog reports whether an entry at level would currently be kept.
func (l *DebugLogger) ShouldLog(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return shouldLog(l.cfg, level)
}

func shouldLog(cfg DebugConfig, level LogLevel) bool {
	if !cfg.Enabled {
		return false
	}
	return level.ShouldLog(cfg.Level)
}

// emit builds an entry, appends it to the buffer and hands it to the sinks
// and subscribers. Filtered entries are dropped without side effects.
func (l *DebugLogger) emit(level LogLevel, component, action, msg string, data Fields, duration *float64, errDetail *ErrorDetail) {
	l.mu.Lock()
	cfg := l.cfg
	if !shouldLog(cfg, level) {
		l.mu.Unlock()
		return
	}

	now := l.now()
	entry := LogEntry{
		Timestamp: now.UTC(),
		Level:     level,
		Component: component,
		Action:    action,
		Message:   msg,
		Error:     errDetail,
	}
	if l.sanitizer != nil {
		entry.Data = l.sanitizer.Sanitize(merged(l.data, data))
		entry.Context = l.sanitizer.Sanitize(l.context)
	} else {
		entry.Data = cloneFields(merged(l.data, data))
		entry.Context = cloneFields(l.context)
	}
	if len(entry.Context) == 0 {
		entry.Context = nil
	}
	if cfg.IncludePerformance {
		entry.Performance = &Performance{
			Timestamp:  durationMs(now.Sub(l.started)),
			Duration:   duration,
			MemoryUsed: heapBytes(),
		}
	} else if duration != nil {
		entry.Performance = &Performance{Duration: duration}
	}

	l.buffer.push(entry)
	subs := make([]func(LogEntry), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		subs = append(subs, fn)
	}
	l.outMu.Lock()
	l.mu.Unlock()
	defer l.outMu.Unlock()

	for _, sink := range l.sinks {
		if !sink.Enabled(cfg) {
			continue
		}
		if err := l.safeWrite(sink, entry, cfg); err != nil {
			l.sinkErrors.Add(1)
		}
	}
	for _, fn := range subs {
		l.safeNotify(fn, entry.clone())
	}
}

func (l *DebugLogger) safeWrite(sink Sink, entry LogEntry, cfg DebugConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Write(entry, cfg)
}

func (l *DebugLogger) safeNotify(fn func(LogEntry), entry LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			l.sinkErrors.Add(1)
		}
	}()
	fn(entry)
}

var heapSample = []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
var heapMu sync.Mutex

func heapBytes() uint64 {
	heapMu.Lock()
	defer heapMu.Unlock()
	metrics.Read(heapSample)
	if heapSample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return heapSample[0].Value.Uint64()
}

// UpdateConfig merges patch over the current configuration. The change
// applies to subsequent calls only.
func (l *DebugLogger) UpdateConfig(patch ConfigPatch) DebugConfig {
	l.mu.Lock()
	old := l.cfg
	l.cfg = patch.Apply(old)
	updated := l.cfg
	l.mu.Unlock()

	l.emit(INFO, "logger", "config_update", "Debug configuration updated",
		Fields{"oldConfig": old, "newConfig": updated}, nil, nil)
	return updated
}

func (l *DebugLogger) GetConfig() DebugConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// GetLogs returns deep copies of the retained entries, oldest first.
func (l *DebugLogger) GetLogs() []LogEntry {
	l.mu.Lock()
	logs := l.buffer.snapshot()
	l.mu.Unlock()

	for i := range logs {
		logs[i] = logs[i].clone()
	}
	return logs
}

// ClearLogs empties the buffer and records the clear as the first new entry.
func (l *DebugLogger) ClearLogs() {
	l.mu.Lock()
	l.buffer.reset()
	l.mu.Unlock()

	l.emit(INFO, "logger", "clear", "Debug logs cleared", nil, nil, nil)
}

// ExportLogs serializes the buffer as an indented JSON array.
func (l *DebugLogger) ExportLogs() ([]byte, error) {
	data, err := json.MarshalIndent(l.GetLogs(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export logs: %w", err)
	}
	return data, nil
}

// Subscribe registers fn to receive a copy of every accepted entry after it
// is buffered, in buffer order. fn must not call back into the logger
// synchronously.
func (l *DebugLogger) Subscribe(fn func(LogEntry)) (cancel func()) {
	l.mu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, id)
			l.mu.Unlock()
		})
	}
}

// SinkErrors counts failed sink writes and subscriber panics.
func (l *DebugLogger) SinkErrors() int64 {
	return l.sinkErrors.Load()
}

func (l *DebugLogger) Close() error {
	var firstErr error
	for _, sink := range l.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
