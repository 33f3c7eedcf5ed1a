package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_RoundTrip(t *testing.T) {
	logger, buf, clock := newTestLogger(t, ConfigPatch{Level: Ptr(TRACE)})

	id := logger.StartTimer("llm_complete", Fields{"model": "gpt-4o-mini"})
	require.NotEmpty(t, id)
	assert.True(t, strings.HasPrefix(id, "llm_complete_"))
	assert.Equal(t, 1, logger.ActiveTimers())

	clock.Advance(150 * time.Millisecond)
	logger.EndTimer(id, Fields{"tokens": 42})

	perf := entriesFor(logger.GetLogs(), "performance")
	require.Len(t, perf, 2)

	start := perf[0]
	assert.Equal(t, TRACE, start.Level)
	assert.Equal(t, "timer_start", start.Action)
	assert.Equal(t, id, start.Data["timerId"])

	end := perf[1]
	assert.Equal(t, INFO, end.Level)
	assert.Equal(t, "timer_end", end.Action)
	assert.Equal(t, "llm_complete completed in 150.00ms", end.Message)
	assert.Equal(t, "150.00ms", end.Data["duration"])
	assert.Equal(t, "llm_complete", end.Data["operation"])
	assert.Equal(t, Fields{"model": "gpt-4o-mini"}, end.Data["metadata"])
	assert.Equal(t, 42, end.Data["tokens"])
	require.NotNil(t, end.Performance)
	require.NotNil(t, end.Performance.Duration)
	assert.Equal(t, 150.0, *end.Performance.Duration)
	assert.Equal(t, 0, logger.ActiveTimers())

	assert.Contains(t, buf.String(), "(150.00ms)")
}

func TestTimer_EndTwiceWarns(t *testing.T) {
	logger, _, _ := newTestLogger(t, ConfigPatch{})

	id := logger.StartTimer("op", nil)
	logger.EndTimer(id, nil)
	logger.EndTimer(id, nil)

	perf := entriesFor(logger.GetLogs(), "performance")
	require.Len(t, perf, 2)
	last := perf[1]
	assert.Equal(t, WARN, last.Level)
	assert.Equal(t, "timer_not_found", last.Action)
	assert.Equal(t, "Timer not found: "+id, last.Message)
}

func TestTimer_UnknownID(t *testing.T) {
	logger, _, _ := newTestLogger(t, ConfigPatch{})
	logger.EndTimer("never_started", nil)

	perf := entriesFor(logger.GetLogs(), "performance")
	require.Len(t, perf, 1)
	assert.Equal(t, WARN, perf[0].Level)
}

func TestTimer_EmptyIDIsNoOp(t *testing.T) {
	logger, _, _ := newTestLogger(t, ConfigPatch{})
	logger.EndTimer("", nil)

	assert.Empty(t, entriesFor(logger.GetLogs(), "performance"))
}

func TestTimer_DisabledPerformance(t *testing.T) {
	logger, _, _ := newTestLogger(t, ConfigPatch{IncludePerformance: Ptr(false)})

	id := logger.StartTimer("op", nil)
	assert.Empty(t, id)
	logger.EndTimer("op_x", nil)

	assert.Empty(t, entriesFor(logger.GetLogs(), "performance"))
	assert.Equal(t, 0, logger.ActiveTimers())
}

func TestTimer_UniqueIDs(t *testing.T) {
	logger, _, _ := newTestLogger(t, ConfigPatch{LogToConsole: Ptr(false)})

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := logger.StartTimer("op", nil)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 500, logger.ActiveTimers())
}

func TestTimer_RedactsMetadata(t *testing.T) {
	logger := New(LoggerConfig{Output: &bytes.Buffer{}, Sanitizer: NewSanitizer("token")})

	id := logger.StartTimer("llm_complete", Fields{"token": "tok-abc", "model": "gpt"})
	logger.EndTimer(id, nil)

	logs := entriesFor(logger.GetLogs(), "performance")
	require.Len(t, logs, 2)
	for _, e := range logs {
		assert.Equal(t, Fields{"token": "[REDACTED]", "model": "gpt"}, e.Data["metadata"], e.Action)
	}
	out, err := logger.ExportLogs()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "tok-abc")
}
