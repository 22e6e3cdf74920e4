package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS alerts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	message   TEXT NOT NULL,
	UNIQUE(timestamp, message)
)`

// SQLiteSink is the indexed event table. The table keeps its historical
// name "alerts" although it stores every ingested event.
type SQLiteSink struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debug().Str("db_path", path).Msg("Indexed sink opened")
	return &SQLiteSink{db: db, path: path}, nil
}

// InsertNew looks each event up and inserts the unknown ones inside one
// transaction. The mutex keeps the lookup and the insert atomic with respect
// to other batches.
func (s *SQLiteSink) InsertNew(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	lookup, err := tx.PrepareContext(ctx, `SELECT COUNT(*) FROM alerts WHERE timestamp = ? AND message = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	defer lookup.Close()

	insert, err := tx.PrepareContext(ctx, `INSERT INTO alerts (timestamp, message) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	var inserted []domain.Event
	for _, e := range events {
		ts := e.TimestampText()
		var n int
		if err := lookup.QueryRowContext(ctx, ts, e.Message).Scan(&n); err != nil {
			return nil, fmt.Errorf("lookup: %w", err)
		}
		if n > 0 {
			continue
		}
		if _, err := insert.ExecContext(ctx, ts, e.Message); err != nil {
			return nil, fmt.Errorf("insert: %w", err)
		}
		inserted = append(inserted, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Recent returns up to n events in reverse insertion order.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, message FROM alerts ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ts, msg string
		if err := rows.Scan(&ts, &msg); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		t, err := domain.ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("stored timestamp %q: %w", ts, err)
		}
		out = append(out, domain.NewEvent(t, msg))
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
