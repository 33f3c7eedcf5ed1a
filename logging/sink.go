package logging

import (
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink receives every entry that passes the level filter.
type Sink interface {
	Enabled(cfg DebugConfig) bool
	Write(entry LogEntry, cfg DebugConfig) error
}

// ConsoleSink writes formatted lines to a writer when logToConsole is set.
type ConsoleSink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
}

func NewConsoleSink(out io.Writer, formatter Formatter) *ConsoleSink {
	if out == nil {
		out = os.Stderr
	}
	if formatter == nil {
		formatter = NewConsoleFormatter(out, true)
	}
	return &ConsoleSink{out: out, formatter: formatter}
}

func (s *ConsoleSink) Enabled(cfg DebugConfig) bool {
	return cfg.LogToConsole
}

func (s *ConsoleSink) Write(entry LogEntry, cfg DebugConfig) error {
	data, err := s.formatter.Format(entry, cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(data)
	return err
}

type FileSinkConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileSink appends JSONL to a size-rotated file when logToFile is set. The
// file is created on first write.
type FileSink struct {
	mu        sync.Mutex
	out       *lumberjack.Logger
	formatter Formatter
}

func NewFileSink(cfg FileSinkConfig) *FileSink {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	return &FileSink{
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
		formatter: &JSONFormatter{},
	}
}

func (s *FileSink) Enabled(cfg DebugConfig) bool {
	return cfg.LogToFile
}

func (s *FileSink) Write(entry LogEntry, cfg DebugConfig) error {
	data, err := s.formatter.Format(entry, cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(data)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
