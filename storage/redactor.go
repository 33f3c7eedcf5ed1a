package storage

import (
	"net/http"
	"strings"

	"github.com/auditmos/dianoia/logging"
)

// Redactor keeps a logging.Sanitizer in sync with the stored redaction
// rules and applies the same rules to HTTP headers.
type Redactor struct {
	sanitizer *logging.Sanitizer
	ruleRepo  RedactionRuleRepo
}

func NewRedactor(sanitizer *logging.Sanitizer) *Redactor {
	if sanitizer == nil {
		sanitizer = logging.NewSanitizer()
	}
	return &Redactor{sanitizer: sanitizer}
}

func NewRedactorWithRepo(repo RedactionRuleRepo, sanitizer *logging.Sanitizer) (*Redactor, error) {
	r := NewRedactor(sanitizer)
	r.ruleRepo = repo
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Redactor) Sanitizer() *logging.Sanitizer {
	return r.sanitizer
}

// Reload replaces the sanitizer's key set with the stored patterns.
func (r *Redactor) Reload() error {
	if r.ruleRepo == nil {
		return nil
	}
	rules, err := r.ruleRepo.GetAll()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(rules))
	for _, rule := range rules {
		keys = append(keys, rule.Pattern)
	}
	r.sanitizer.SetKeys(keys)
	return nil
}

// Headers flattens h into a map, redacting sensitive header values.
func (r *Redactor) Headers(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	result := make(map[string]string, len(h))
	for k := range h {
		if r.sanitizer.Sensitive(k) {
			result[k] = "[REDACTED]"
		} else {
			result[k] = strings.Join(h.Values(k), ", ")
		}
	}
	return result
}
