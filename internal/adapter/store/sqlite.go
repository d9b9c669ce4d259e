// Package store persists session resume snapshots.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"botgate/internal/domain"
)

// SQLiteStore implements domain.SessionStore on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w: %w", domain.ErrStore, err)
	}
	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w: %w", domain.ErrStore, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot db: %w: %w", domain.ErrStore, err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS resume_snapshots (
			session_key   TEXT PRIMARY KEY,
			resume_url    TEXT NOT NULL,
			session_token TEXT NOT NULL,
			sequence      INTEGER,
			updated_at    TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, snap domain.ResumeSnapshot) error {
	if snap.Key == "" {
		return domain.NewSubSystemError("store", "SQLiteStore.Save", domain.ErrInvalidInput, "empty key")
	}
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	var seq sql.NullInt64
	if snap.Sequence != nil {
		seq = sql.NullInt64{Int64: int64(*snap.Sequence), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resume_snapshots (session_key, resume_url, session_token, sequence, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			resume_url = excluded.resume_url,
			session_token = excluded.session_token,
			sequence = excluded.sequence,
			updated_at = excluded.updated_at`,
		snap.Key, snap.ResumeURL, snap.SessionToken, seq, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w: %w", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (*domain.ResumeSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT session_key, resume_url, session_token, sequence, updated_at FROM resume_snapshots WHERE session_key = ?", key)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewSubSystemError("store", "SQLiteStore.Load", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w: %w", domain.ErrStore, err)
	}
	return snap, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM resume_snapshots WHERE session_key = ?", key)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w: %w", domain.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewSubSystemError("store", "SQLiteStore.Delete", domain.ErrNotFound, key)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]domain.ResumeSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_key, resume_url, session_token, sequence, updated_at FROM resume_snapshots ORDER BY session_key")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []domain.ResumeSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w: %w", domain.ErrStore, err)
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*domain.ResumeSnapshot, error) {
	var (
		snap    domain.ResumeSnapshot
		seq     sql.NullInt64
		updated string
	)
	if err := row.Scan(&snap.Key, &snap.ResumeURL, &snap.SessionToken, &seq, &updated); err != nil {
		return nil, err
	}
	if seq.Valid {
		v := uint64(seq.Int64)
		snap.Sequence = &v
	}
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	snap.UpdatedAt = t
	return &snap, nil
}
