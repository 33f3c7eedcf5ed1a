package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

var defaultRedactionPatterns = []string{
	"apiKey",
	"api_key",
	"authorization",
	"password",
	"secret",
	"token",
	"cookie",
	"x-api-key",
	"openai_api_key",
	"openrouter_api_key",
}

type RedactionRule struct {
	ID        string `json:"id"`
	Pattern   string `json:"pattern"`
	CreatedAt int64  `json:"createdAt"`
}

type RedactionRuleRepo interface {
	GetAll() ([]*RedactionRule, error)
	Create(pattern string) (*RedactionRule, error)
	Delete(id string) error
	Seed() error
}

type SQLiteRedactionRuleRepo struct {
	db *sql.DB
}

func NewSQLiteRedactionRuleRepo(db *sql.DB) *SQLiteRedactionRuleRepo {
	return &SQLiteRedactionRuleRepo{db: db}
}

func (r *SQLiteRedactionRuleRepo) GetAll() ([]*RedactionRule, error) {
	rows, err := r.db.Query("SELECT id, pattern, created_at FROM redaction_rules ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("query redaction_rules: %w", err)
	}
	defer rows.Close()

	var rules []*RedactionRule
	for rows.Next() {
		rule := &RedactionRule{}
		if err := rows.Scan(&rule.ID, &rule.Pattern, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan redaction_rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *SQLiteRedactionRuleRepo) Create(pattern string) (*RedactionRule, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	rule := &RedactionRule{
		ID:        ulid.Make().String(),
		Pattern:   pattern,
		CreatedAt: time.Now().UnixMilli(),
	}

	_, err := r.db.Exec(
		"INSERT INTO redaction_rules (id, pattern, created_at) VALUES (?, ?, ?)",
		rule.ID, rule.Pattern, rule.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redaction_rule: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRedactionRuleRepo) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM redaction_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete redaction_rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("redaction rule not found")
	}
	return nil
}

// Seed inserts the default patterns. Existing patterns are left alone.
func (r *SQLiteRedactionRuleRepo) Seed() error {
	for _, pattern := range defaultRedactionPatterns {
		_, err := r.db.Exec(
			"INSERT OR IGNORE INTO redaction_rules (id, pattern, created_at) VALUES (?, ?, ?)",
			ulid.Make().String(), pattern, time.Now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("seed redaction_rule %s: %w", pattern, err)
		}
	}
	return nil
}
