package logging

import (
	"strings"
	"sync"
)

const redactedValue = "[REDACTED]"

var defaultSensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"auth",
	"credential",
	"private_key",
	"privatekey",
}

type Fields map[string]interface{}

func WithFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	result := make(Fields, len(f))
	for k, v := range f {
		result[k] = v
	}
	return result
}

// merged returns a new map holding base overlaid with extra, or nil when both are empty.
func merged(base, extra Fields) Fields {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Sanitizer redacts values whose key matches a sensitive key, case-insensitively.
// The key set can be replaced at runtime.
type Sanitizer struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewSanitizer(keys ...string) *Sanitizer {
	s := &Sanitizer{}
	if len(keys) == 0 {
		keys = defaultSensitiveKeys
	}
	s.SetKeys(keys)
	return s
}

func (s *Sanitizer) SetKeys(keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	s.mu.Lock()
	s.keys = set
	s.mu.Unlock()
}

func (s *Sanitizer) Sensitive(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[strings.ToLower(key)]
	return ok
}

// Sanitize returns a redacted deep copy of f. Nested maps and slices are
// walked so keys under "data" or "metadata" are redacted too.
func (s *Sanitizer) Sanitize(f Fields) Fields {
	if f == nil {
		return nil
	}
	return copyMap(f, s)
}

// cloneFields deep-copies the maps and slices reachable from f.
func cloneFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	return copyMap(f, nil)
}

func copyMap(f map[string]interface{}, s *Sanitizer) Fields {
	result := make(Fields, len(f))
	for k, v := range f {
		if s != nil && s.Sensitive(k) {
			result[k] = redactedValue
			continue
		}
		result[k] = copyValue(v, s)
	}
	return result
}

func copyValue(v interface{}, s *Sanitizer) interface{} {
	switch val := v.(type) {
	case Fields:
		if val == nil {
			return val
		}
		return copyMap(val, s)
	case map[string]interface{}:
		if val == nil {
			return val
		}
		return map[string]interface{}(copyMap(val, s))
	case map[string]string:
		if val == nil {
			return val
		}
		out := make(map[string]string, len(val))
		for k, sv := range val {
			if s != nil && s.Sensitive(k) {
				sv = redactedValue
			}
			out[k] = sv
		}
		return out
	case map[string]StateChange:
		if val == nil {
			return val
		}
		out := make(map[string]StateChange, len(val))
		for k, c := range val {
			out[k] = StateChange{From: copyValue(c.From, s), To: copyValue(c.To, s)}
		}
		return out
	case []interface{}:
		if val == nil {
			return val
		}
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item, s)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	}
	return v
}
