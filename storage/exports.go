package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// LogExport is a saved snapshot of the debug log buffer. Payload holds the
// exported JSON array and is left empty by List.
type LogExport struct {
	ID         string `json:"id"`
	CreatedAt  int64  `json:"createdAt"`
	EntryCount int    `json:"entryCount"`
	Payload    []byte `json:"-"`
}

type ExportRepo interface {
	Save(exp *LogExport) error
	Get(id string) (*LogExport, error)
	List(limit int) ([]*LogExport, error)
	Delete(id string) error
	Prune(olderThan time.Time) (int64, error)
}

type SQLiteExportRepo struct {
	db *sql.DB
}

func NewSQLiteExportRepo(db *sql.DB) *SQLiteExportRepo {
	return &SQLiteExportRepo{db: db}
}

func (r *SQLiteExportRepo) Save(exp *LogExport) error {
	if exp.ID == "" {
		exp.ID = ulid.Make().String()
	}
	if exp.CreatedAt == 0 {
		exp.CreatedAt = time.Now().UnixMilli()
	}
	if exp.Payload == nil {
		exp.Payload = []byte("[]")
	}

	_, err := r.db.Exec(`
		INSERT INTO log_exports (id, created_at, entry_count, payload)
		VALUES (?, ?, ?, ?)
	`, exp.ID, exp.CreatedAt, exp.EntryCount, exp.Payload)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// Get returns nil, nil when no export has the given id.
func (r *SQLiteExportRepo) Get(id string) (*LogExport, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, entry_count, payload
		FROM log_exports WHERE id = ?
	`, id)

	exp := &LogExport{}
	err := row.Scan(&exp.ID, &exp.CreatedAt, &exp.EntryCount, &exp.Payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan export: %w", err)
	}
	return exp, nil
}

// List returns the newest exports first, without payloads.
func (r *SQLiteExportRepo) List(limit int) ([]*LogExport, error) {
	rows, err := r.db.Query(`
		SELECT id, created_at, entry_count
		FROM log_exports ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var exports []*LogExport
	for rows.Next() {
		exp := &LogExport{}
		if err := rows.Scan(&exp.ID, &exp.CreatedAt, &exp.EntryCount); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		exports = append(exports, exp)
	}
	return exports, rows.Err()
}

func (r *SQLiteExportRepo) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM log_exports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	return nil
}

func (r *SQLiteExportRepo) Prune(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM log_exports WHERE created_at < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune exports: %w", err)
	}
	return res.RowsAffected()
}
