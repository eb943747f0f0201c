// Package storage provides the SQLite-backed audit trail store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crieger/scopegw/internal/policy"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  at        TEXT NOT NULL,
  tool      TEXT NOT NULL,
  target    TEXT NOT NULL,
  params    JSON,
  user_id   TEXT NOT NULL,
  result    TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS audit_log_at_idx ON audit_log(at);`,
		`CREATE INDEX IF NOT EXISTS audit_log_tool_idx ON audit_log(tool);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}

// AuditStore is an append-only audit trail backed by SQLite. It implements
// policy.AuditSink.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore wraps an open database handle.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Record appends one audit entry.
func (s *AuditStore) Record(entry policy.AuditEntry) error {
	var params any
	if entry.Params != nil {
		b, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("marshal audit params: %w", err)
		}
		params = string(b)
	}

	_, err := s.db.Exec(`
INSERT INTO audit_log(at, tool, target, params, user_id, result)
VALUES(?, ?, ?, ?, ?, ?);
`, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Tool, entry.Target, params, entry.UserID, entry.Result)
	if err != nil {
		return fmt.Errorf("insert audit_log: %w", err)
	}
	return nil
}

// AuditRecord is a read-back projection of one audit row.
type AuditRecord struct {
	ID     int64          `json:"id"`
	At     time.Time      `json:"at"`
	Tool   string         `json:"tool"`
	Target string         `json:"target"`
	Params map[string]any `json:"params,omitempty"`
	UserID string         `json:"user_id"`
	Result string         `json:"result"`
}

// Recent returns the newest audit entries, newest first, capped at limit.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, at, tool, target, params, user_id, result
FROM audit_log
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var (
			rec    AuditRecord
			atS    string
			params sql.NullString
		)
		if err := rows.Scan(&rec.ID, &atS, &rec.Tool, &rec.Target, &params, &rec.UserID, &rec.Result); err != nil {
			return nil, fmt.Errorf("scan audit_log: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, atS); err == nil {
			rec.At = t
		}
		if params.Valid {
			_ = json.Unmarshal([]byte(params.String), &rec.Params)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
