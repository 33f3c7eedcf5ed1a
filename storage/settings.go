package storage

import (
	"database/sql"
	"fmt"
	"time"
)

type Setting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SettingsRepo is a persistent string key/value store. It satisfies
// logging.KeyValueStore so the logger can read its enable and level flags
// from it at startup.
type SettingsRepo interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	All() ([]*Setting, error)
}

type SQLiteSettingsRepo struct {
	db *sql.DB
}

func NewSQLiteSettingsRepo(db *sql.DB) *SQLiteSettingsRepo {
	return &SQLiteSettingsRepo{db: db}
}

func (r *SQLiteSettingsRepo) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan setting: %w", err)
	}
	return value, true, nil
}

func (r *SQLiteSettingsRepo) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SQLiteSettingsRepo) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}

func (r *SQLiteSettingsRepo) All() ([]*Setting, error) {
	rows, err := r.db.Query("SELECT key, value, updated_at FROM settings ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var settings []*Setting
	for rows.Next() {
		s := &Setting{}
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
