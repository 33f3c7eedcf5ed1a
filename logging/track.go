package logging

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// TrackError logs err at error level with message "Error: <msg>". The stack
// is captured only when includeStackTraces is set.
func (l *DebugLogger) TrackError(err error, component, action string, ctx Fields) {
	if err == nil {
		return
	}
	l.mu.Lock()
	cfg := l.cfg
	l.mu.Unlock()
	if !shouldLog(cfg, ERROR) {
		return
	}

	target := l
	if len(ctx) > 0 {
		target = &DebugLogger{state: l.state, data: l.data, context: merged(l.context, ctx)}
	}
	target.emit(ERROR, component, action, "Error: "+err.Error(), nil, nil,
		newErrorDetail(err, cfg.IncludeStackTraces))
}

// TrackAPIRequest logs an outbound or inbound request and returns the id
// that correlates it with TrackAPIResponse.
func (l *DebugLogger) TrackAPIRequest(method, url string, data Fields) string {
	requestID := "req_" + ulid.Make().String()

	fields := Fields{"requestId": requestID, "method": method, "url": url}
	if data != nil {
		fields["data"] = data
	}
	view := &DebugLogger{state: l.state, data: l.data, context: merged(l.context, Fields{"requestId": requestID})}
	view.emit(INFO, "api", "request", fmt.Sprintf("%s %s", method, url), fields, nil, nil)
	return requestID
}

func (l *DebugLogger) TrackAPIResponse(requestID string, status int, data Fields, duration time.Duration) {
	level := INFO
	switch {
	case status >= 500:
		level = ERROR
	case status >= 400:
		level = WARN
	}

	fields := Fields{"requestId": requestID, "status": status}
	if data != nil {
		fields["data"] = data
	}
	var ms *float64
	if duration > 0 {
		d := durationMs(duration)
		ms = &d
		fields["duration"] = fmt.Sprintf("%.2fms", d)
	}
	view := &DebugLogger{state: l.state, data: l.data, context: merged(l.context, Fields{"requestId": requestID})}
	view.emit(level, "api", "response",
		fmt.Sprintf("Response %d %s", status, http.StatusText(status)), fields, ms, nil)
}

type StateChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// TrackStateChange diffs the top-level keys of two state maps and logs the
// differences at debug. Nested values are compared by identity, not content.
func (l *DebugLogger) TrackStateChange(component string, oldState, newState map[string]interface{}) map[string]StateChange {
	changes := DiffState(oldState, newState)
	if len(changes) == 0 {
		return changes
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l.emit(DEBUG, component, "state_change",
		fmt.Sprintf("State changed: %d keys", len(changes)),
		Fields{"changes": changes, "changedKeys": keys}, nil, nil)
	return changes
}

// DiffState reports, for every key in either map whose value differs, the
// old and new value. Missing keys read as nil.
func DiffState(oldState, newState map[string]interface{}) map[string]StateChange {
	changes := make(map[string]StateChange)
	for k, from := range oldState {
		to := newState[k]
		if !sameValue(from, to) {
			changes[k] = StateChange{From: from, To: to}
		}
	}
	for k, to := range newState {
		if _, seen := oldState[k]; seen {
			continue
		}
		if to != nil {
			changes[k] = StateChange{From: nil, To: to}
		}
	}
	return changes
}

// sameValue compares comparable values with == and reference values (maps,
// slices, pointers, funcs) by identity.
func sameValue(a, b interface{}) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ta.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}

	if !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
