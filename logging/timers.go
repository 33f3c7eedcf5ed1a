package logging

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// StartTimer opens a one-shot timer and returns its id, or "" when logging
// or performance tracking is disabled.
func (l *DebugLogger) StartTimer(operation string, metadata Fields) string {
	l.mu.Lock()
	if !l.cfg.Enabled || !l.cfg.IncludePerformance {
		l.mu.Unlock()
		return ""
	}
	id := operation + "_" + ulid.Make().String()
	l.timers[id] = &PerformanceMetric{
		Operation: operation,
		StartTime: l.now(),
		Metadata:  WithFields(metadata),
	}
	l.mu.Unlock()

	l.emit(TRACE, "performance", "timer_start", "Started timer: "+operation,
		Fields{"timerId": id, "operation": operation, "metadata": metadata}, nil, nil)
	return id
}

// EndTimer closes the timer and logs its duration. Unknown or already
// closed ids are reported at warn.
func (l *DebugLogger) EndTimer(id string, extra Fields) {
	l.mu.Lock()
	if !l.cfg.Enabled || !l.cfg.IncludePerformance || id == "" {
		l.mu.Unlock()
		return
	}
	metric, ok := l.timers[id]
	if !ok {
		l.mu.Unlock()
		l.emit(WARN, "performance", "timer_not_found", "Timer not found: "+id,
			Fields{"timerId": id}, nil, nil)
		return
	}
	metric.EndTime = l.now()
	metric.Duration = metric.EndTime.Sub(metric.StartTime)
	if metric.Duration < 0 {
		metric.Duration = 0
	}
	delete(l.timers, id)
	l.mu.Unlock()

	ms := durationMs(metric.Duration)
	data := Fields{
		"timerId":   id,
		"operation": metric.Operation,
		"duration":  fmt.Sprintf("%.2fms", ms),
		"metadata":  metric.Metadata,
	}
	for k, v := range extra {
		data[k] = v
	}
	l.emit(INFO, "performance", "timer_end",
		fmt.Sprintf("%s completed in %.2fms", metric.Operation, ms), data, &ms, nil)
}

// ActiveTimers returns the number of open timers.
func (l *DebugLogger) ActiveTimers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}
