package logging

import (
	"context"
	"time"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or a NopLogger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return NopLogger{}
}

type NopLogger struct{}

func (NopLogger) Error(component, action, msg string)                       {}
func (NopLogger) Warn(component, action, msg string)                        {}
func (NopLogger) Info(component, action, msg string)                        {}
func (NopLogger) Debug(component, action, msg string)                       {}
func (NopLogger) Trace(component, action, msg string)                       {}
func (NopLogger) Log(component, action, msg string)                         {}
func (n NopLogger) WithData(data Fields) Logger                             { return n }
func (n NopLogger) WithContext(ctx Fields) Logger                           { return n }
func (NopLogger) TrackError(err error, component, action string, ctx Fields) {}
func (NopLogger) StartTimer(operation string, metadata Fields) string       { return "" }
func (NopLogger) EndTimer(id string, extra Fields)                          {}
func (NopLogger) TrackAPIRequest(method, url string, data Fields) string    { return "" }
func (NopLogger) TrackAPIResponse(requestID string, status int, data Fields, duration time.Duration) {
}
func (NopLogger) TrackStateChange(component string, oldState, newState map[string]interface{}) map[string]StateChange {
	return DiffState(oldState, newState)
}
