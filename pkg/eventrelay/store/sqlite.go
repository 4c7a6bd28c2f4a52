package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/randalmurphal/eventrelay/pkg/eventrelay/event"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists events to a SQLite database shared by both
// processes. Each record is one row; Drain deletes and returns the rows in
// a single statement, so concurrent drains are disjoint across processes
// as well.
type SQLiteStore struct {
	db     *sql.DB
	key    Key
	codec  Codec
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path.
// The path should be a file path (e.g., "./events.db") or ":memory:" for testing.
func NewSQLiteStore(path string, key Key, opts ...Option) (*SQLiteStore, error) {
	o := applyOptions(opts)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &IOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection, and writes
	// are serialized by SQLite anyway.
	db.SetMaxOpenConns(1)

	// Enable WAL mode so the other process can read while we write
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cached_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			store_key TEXT NOT NULL,
			payload BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cached_events_store_key
		ON cached_events(store_key, seq)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		key:    key,
		codec:  o.codec,
		logger: o.logger.With(slog.String("store_key", key.String())),
	}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, events event.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	payloads := make([][]byte, 0, len(events))
	for _, r := range events {
		data, err := encodeRecord(s.codec, r)
		if err != nil {
			return err
		}
		payloads = append(payloads, data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range payloads {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cached_events (store_key, payload) VALUES (?, ?)
		`, s.key.String(), p); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Read implements Store. Rows whose payload no longer decodes are skipped
// with a warning.
func (s *SQLiteStore) Read(ctx context.Context) (event.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM cached_events
		WHERE store_key = ?
		ORDER BY seq
	`, s.key.String())
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	list := event.List{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r, err := decodeRecord(s.codec, payload)
		if err != nil {
			s.logger.Warn("skipping undecodable event row",
				slog.String("error", err.Error()),
			)
			continue
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM cached_events WHERE store_key = ?
	`, s.key.String()); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}

// Drain implements Store.
//
// Rows whose payload no longer decodes are dropped with a warning; they
// have already been deleted.
func (s *SQLiteStore) Drain(ctx context.Context) (event.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM cached_events
		WHERE store_key = ?
		RETURNING seq, payload
	`, s.key.String())
	if err != nil {
		return nil, fmt.Errorf("drain events: %w", err)
	}
	defer rows.Close()

	type row struct {
		seq     int64
		payload []byte
	}
	var drained []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		drained = append(drained, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// RETURNING order is unspecified
	sort.Slice(drained, func(i, j int) bool { return drained[i].seq < drained[j].seq })

	list := make(event.List, 0, len(drained))
	for _, r := range drained {
		rec, err := decodeRecord(s.codec, r.payload)
		if err != nil {
			s.logger.Warn("dropping undecodable event row",
				slog.Int64("seq", r.seq),
				slog.String("error", err.Error()),
			)
			continue
		}
		list = append(list, rec)
	}
	return list, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) check() error {
	if s.closed {
		return ErrStoreClosed
	}
	return s.key.Validate()
}
