package plisp

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const traceSchema = `
CREATE TABLE IF NOT EXISTS traces (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	op          TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	hash        TEXT    NOT NULL,
	result      TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT '',
	kind        TEXT    NOT NULL DEFAULT '',
	cached      INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	duration_us INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS traces_created_at ON traces (created_at);
`

// TraceStore persists traces in a sqlite database.
type TraceStore struct {
	db *sql.DB
}

// OpenTraceStore opens (or creates) traces.db in dir.
func OpenTraceStore(dir string) (*TraceStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "traces.db"))
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	// sqlite allows one writer; keep every statement on one connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping trace db: %w", err)
	}
	if _, err := db.Exec(traceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init trace schema: %w", err)
	}
	return &TraceStore{db: db}, nil
}

func (s *TraceStore) Insert(t *Trace) error {
	_, err := s.db.Exec(
		`INSERT INTO traces (op, source, hash, result, error, kind, cached, created_at, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Op, t.Source, t.Hash, t.Result, t.Error, t.Kind, t.Cached,
		t.Timestamp.UnixNano(), t.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest traces, oldest first.
func (s *TraceStore) Recent(limit int) ([]Trace, error) {
	rows, err := s.db.Query(
		`SELECT op, source, hash, result, error, kind, cached, created_at, duration_us
		 FROM traces ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var traces []Trace
	for rows.Next() {
		var (
			t        Trace
			created  int64
			duration int64
		)
		if err := rows.Scan(&t.Op, &t.Source, &t.Hash, &t.Result, &t.Error, &t.Kind, &t.Cached, &created, &duration); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		t.Timestamp = time.Unix(0, created).UTC()
		t.Duration = time.Duration(duration) * time.Microsecond
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	for i, j := 0, len(traces)-1; i < j; i, j = i+1, j-1 {
		traces[i], traces[j] = traces[j], traces[i]
	}
	return traces, nil
}

// Prune deletes traces recorded before cutoff and reports how many went.
func (s *TraceStore) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM traces WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune traces: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune traces: %w", err)
	}
	return n, nil
}

func (s *TraceStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM traces`); err != nil {
		return fmt.Errorf("clear traces: %w", err)
	}
	return nil
}

func (s *TraceStore) Close() error {
	return s.db.Close()
}
