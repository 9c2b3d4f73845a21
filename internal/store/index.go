package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/medscribe/internal/model"
	_ "modernc.org/sqlite"
)

// CurrentIndexVersion is the latest index schema version.
// Bump this when adding migrations.
const CurrentIndexVersion = 1

// Index is a queryable catalogue of committed envelopes and audit entries.
// The JSON files under the data directory stay the source of truth.
type Index struct {
	db *sql.DB
}

// ListFilter narrows index queries. Zero values match everything.
type ListFilter struct {
	RecordType string
	Since      time.Time
	Limit      int
}

// OpenIndex opens (creating if needed) the SQLite index at path
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close releases the database handle
func (ix *Index) Close() error {
	return ix.db.Close()
}

func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: records and audit tables
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS records (
		  record_id      TEXT PRIMARY KEY,
		  record_type    TEXT NOT NULL,
		  schema_version INTEGER NOT NULL,
		  created_at     INTEGER NOT NULL,
		  path           TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_type_created
		ON records(record_type, created_at DESC);

		CREATE TABLE IF NOT EXISTS audit (
		  id          TEXT PRIMARY KEY,
		  record_type TEXT NOT NULL,
		  code        TEXT NOT NULL,
		  path        TEXT,
		  reason      TEXT,
		  message     TEXT NOT NULL,
		  transcript  TEXT NOT NULL,
		  created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_type_created
		ON audit(record_type, created_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}
	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// PutRecord indexes a committed envelope. Re-indexing the same id replaces the row.
func (ix *Index) PutRecord(ctx context.Context, env *model.Envelope) error {
	_, err := ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (record_id, record_type, schema_version, created_at, path)
		VALUES (?, ?, ?, ?, ?)
	`, env.RecordID, env.RecordType, env.SchemaVersion, env.CreatedAt.Unix(), env.Path)
	if err != nil {
		return fmt.Errorf("index record %s: %w", env.RecordID, err)
	}
	return nil
}

// PutAudit indexes an audit entry
func (ix *Index) PutAudit(ctx context.Context, e *model.AuditEntry) error {
	_, err := ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audit (id, record_type, code, path, reason, message, transcript, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RecordType, e.Code, toNullString(e.Path), toNullString(e.Reason), e.Message, e.Transcript, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("index audit %s: %w", e.ID, err)
	}
	return nil
}

// List returns indexed envelopes, newest first
func (ix *Index) List(ctx context.Context, f ListFilter) ([]model.Envelope, error) {
	where, args := f.clause()
	query := `SELECT record_id, record_type, schema_version, created_at, path FROM records` +
		where + ` ORDER BY created_at DESC, record_id DESC` + f.limit()

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []model.Envelope
	for rows.Next() {
		var env model.Envelope
		var created int64
		if err := rows.Scan(&env.RecordID, &env.RecordType, &env.SchemaVersion, &created, &env.Path); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		env.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, env)
	}
	return out, rows.Err()
}

// Get returns the indexed envelope for recordID, or sql.ErrNoRows
func (ix *Index) Get(ctx context.Context, recordID string) (*model.Envelope, error) {
	var env model.Envelope
	var created int64
	err := ix.db.QueryRowContext(ctx, `
		SELECT record_id, record_type, schema_version, created_at, path FROM records WHERE record_id = ?
	`, recordID).Scan(&env.RecordID, &env.RecordType, &env.SchemaVersion, &created, &env.Path)
	if err != nil {
		return nil, err
	}
	env.CreatedAt = time.Unix(created, 0).UTC()
	return &env, nil
}

// ListAudit returns indexed audit entries, newest first
func (ix *Index) ListAudit(ctx context.Context, f ListFilter) ([]model.AuditEntry, error) {
	where, args := f.clause()
	query := `SELECT id, record_type, code, path, reason, message, transcript, created_at FROM audit` +
		where + ` ORDER BY created_at DESC, id DESC` + f.limit()

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var path, reason sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.RecordType, &e.Code, &path, &reason, &e.Message, &e.Transcript, &created); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Path = path.String
		e.Reason = reason.String
		e.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (f ListFilter) clause() (string, []any) {
	var conds string
	var args []any
	if f.RecordType != "" {
		conds = " WHERE record_type = ?"
		args = append(args, f.RecordType)
	}
	if !f.Since.IsZero() {
		if conds == "" {
			conds = " WHERE"
		} else {
			conds += " AND"
		}
		conds += " created_at >= ?"
		args = append(args, f.Since.Unix())
	}
	return conds, args
}

func (f ListFilter) limit() string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
