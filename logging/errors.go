package logging

import (
	"errors"
	"reflect"
	"runtime/debug"
	"strings"
)

type TypedError interface {
	error
	Type() string
}

// ContextError annotates an error with the operation that failed and an
// optional type name reported as ErrorDetail.Name.
type ContextError struct {
	Op      string
	Err     error
	ErrType string
}

func (e *ContextError) Error() string {
	if e.Op != "" && e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Op
}

func (e *ContextError) Type() string {
	if e.ErrType != "" {
		return e.ErrType
	}
	return inferErrorType(e.Err)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextError{Op: op, Err: err}
}

func WrapErrorWithType(op string, err error, errType string) error {
	if err == nil {
		return nil
	}
	return &ContextError{Op: op, Err: err, ErrType: errType}
}

func inferErrorType(err error) string {
	if err == nil {
		return ""
	}

	var typed TypedError
	if errors.As(err, &typed) {
		return typed.Type()
	}

	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}

// ErrorType names the kind of err: an explicit ContextError or TypedError
// type when present, the Go type name otherwise.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}

	var ctx *ContextError
	if errors.As(err, &ctx) {
		return ctx.Type()
	}

	return inferErrorType(err)
}

func newErrorDetail(err error, withStack bool) *ErrorDetail {
	detail := &ErrorDetail{
		Name:    ErrorType(err),
		Message: err.Error(),
	}
	if withStack {
		detail.Stack = trimStack(string(debug.Stack()))
	}
	return detail
}

// trimStack drops the frames of the capture itself and of this package so
// the stack starts at the caller of TrackError.
func trimStack(stack string) string {
	lines := strings.Split(strings.TrimRight(stack, "\n"), "\n")
	if len(lines) < 3 {
		return stack
	}

	out := []string{lines[0]}
	skipping := true
	for i := 1; i+1 < len(lines); i += 2 {
		fn := lines[i]
		if skipping && (strings.HasPrefix(fn, "runtime/debug.") || strings.Contains(fn, "/dianoia/logging.")) {
			continue
		}
		skipping = false
		out = append(out, fn, lines[i+1])
	}
	return strings.Join(out, "\n") + "\n"
}
