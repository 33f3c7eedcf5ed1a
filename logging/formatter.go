package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Formatter interface {
	Format(entry LogEntry, cfg DebugConfig) ([]byte, error)
}

// JSONFormatter writes one JSON object per line.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(entry LogEntry, cfg DebugConfig) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// ConsoleFormatter renders the single-line human format, optionally followed
// by an indented detail block for data, error, performance and context.
type ConsoleFormatter struct {
	colorEnabled bool
	details      bool
}

func NewConsoleFormatter(w io.Writer, details bool) *ConsoleFormatter {
	colorEnabled := false
	if f, ok := w.(*os.File); ok {
		colorEnabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ConsoleFormatter{colorEnabled: colorEnabled, details: details}
}

func (f *ConsoleFormatter) Format(entry LogEntry, cfg DebugConfig) ([]byte, error) {
	var sb strings.Builder

	if cfg.IncludeTimestamps {
		sb.WriteString("[")
		sb.WriteString(entry.Timestamp.Format(timestampLayout))
		sb.WriteString("] ")
	}
	sb.WriteString(f.levelTag(entry.Level))
	fmt.Fprintf(&sb, " [%s] %s: %s", entry.Component, entry.Action, entry.Message)

	if entry.Performance != nil && entry.Performance.Duration != nil {
		fmt.Fprintf(&sb, " (%.2fms)", *entry.Performance.Duration)
	}
	if len(entry.Context) > 0 {
		sb.WriteString(" | Context: ")
		sb.WriteString(compactJSON(entry.Context))
	}
	sb.WriteString("\n")

	if f.details {
		f.writeDetails(&sb, entry, cfg)
	}
	return []byte(sb.String()), nil
}

func (f *ConsoleFormatter) writeDetails(sb *strings.Builder, entry LogEntry, cfg DebugConfig) {
	if len(entry.Data) > 0 {
		sb.WriteString("    data: ")
		sb.WriteString(compactJSON(entry.Data))
		sb.WriteString("\n")
	}
	if entry.Error != nil {
		fmt.Fprintf(sb, "    error: %s: %s\n", entry.Error.Name, entry.Error.Message)
		if entry.Error.Stack != "" && cfg.IncludeStackTraces {
			for _, line := range strings.Split(strings.TrimRight(entry.Error.Stack, "\n"), "\n") {
				sb.WriteString("      ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}
	if entry.Performance != nil && cfg.IncludePerformance {
		sb.WriteString("    performance: ")
		sb.WriteString(compactJSON(entry.Performance))
		sb.WriteString("\n")
	}
	if len(entry.Context) > 0 {
		sb.WriteString("    context: ")
		sb.WriteString(compactJSON(entry.Context))
		sb.WriteString("\n")
	}
}

func (f *ConsoleFormatter) levelTag(l LogLevel) string {
	tag := "[" + strings.ToUpper(l.String()) + "]"
	if !f.colorEnabled {
		return tag
	}

	var color string
	switch l {
	case TRACE:
		color = "\033[90m" // gray
	case DEBUG:
		color = "\033[36m" // cyan
	case INFO:
		color = "\033[32m" // green
	case WARN:
		color = "\033[33m" // yellow
	case ERROR:
		color = "\033[31m" // red
	default:
		return tag
	}
	return color + tag + "\033[0m"
}

func compactJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
