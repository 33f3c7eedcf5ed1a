package logging

import "time"

type LogEntry struct {
	Timestamp   time.Time    `json:"timestamp"`
	Level       LogLevel     `json:"level"`
	Component   string       `json:"component"`
	Action      string       `json:"action"`
	Message     string       `json:"message"`
	Data        Fields       `json:"data,omitempty"`
	Performance *Performance `json:"performance,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	Context     Fields       `json:"context,omitempty"`
}

// Performance is the timing snapshot attached to an entry. Timestamp is
// milliseconds since the logger was created.
type Performance struct {
	Timestamp  float64  `json:"timestamp"`
	Duration   *float64 `json:"duration,omitempty"`
	MemoryUsed uint64   `json:"memoryUsed,omitempty"`
}

type ErrorDetail struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// PerformanceMetric tracks one open timer.
type PerformanceMetric struct {
	Operation string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Metadata  Fields
}

// clone returns e with its maps and pointers copied so the buffered entry
// cannot be changed through the result.
func (e LogEntry) clone() LogEntry {
	e.Data = cloneFields(e.Data)
	e.Context = cloneFields(e.Context)
	if e.Performance != nil {
		p := *e.Performance
		if p.Duration != nil {
			d := *p.Duration
			p.Duration = &d
		}
		e.Performance = &p
	}
	if e.Error != nil {
		detail := *e.Error
		e.Error = &detail
	}
	return e
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
