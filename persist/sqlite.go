package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tbxark/intakeagent/types"
	_ "modernc.org/sqlite"
)

// SQLite keeps one row per session.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save upserts every session and removes rows for sessions no longer present.
func (s *SQLite) Save(ctx context.Context, sessions []types.PersistedSession) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `
		INSERT INTO sessions (session_id, status, progress, started_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			updated_at = excluded.updated_at,
			payload = excluded.payload`

	ids := make([]any, 0, len(sessions))
	for _, ps := range sessions {
		payload, err := encodeSession(ps)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsert,
			ps.SessionID, string(ps.Status), ps.Progress,
			ps.StartedAt.Unix(), ps.LastActivityAt.Unix(), string(payload),
		); err != nil {
			return fmt.Errorf("upsert session %s: %w", ps.SessionID, err)
		}
		ids = append(ids, ps.SessionID)
	}

	del := "DELETE FROM sessions"
	if len(ids) > 0 {
		del += " WHERE session_id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	}
	if _, err := tx.ExecContext(ctx, del, ids...); err != nil {
		return fmt.Errorf("delete stale sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sessions: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) ([]types.PersistedSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM sessions ORDER BY started_at, session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.PersistedSession
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		ps, err := decodeSession([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// Summary is a lightweight listing row.
type Summary struct {
	SessionID string
	Status    types.Status
	Progress  int
	UpdatedAt time.Time
}

func (s *SQLite) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, status, progress, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			status  string
			updated int64
		)
		if err := rows.Scan(&sum.SessionID, &status, &sum.Progress, &updated); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sum.Status = types.Status(status)
		sum.UpdatedAt = time.Unix(updated, 0)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
