// Package sqlite stores JSON documents in a local SQLite file for
// single-user installs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finlink/internal/infrastructure/migrations"

	_ "modernc.org/sqlite"
)

var dbTracer = otel.Tracer("finlink.db")

// DocumentStore is a documents table in a SQLite database file.
type DocumentStore struct {
	db *sql.DB
}

// Open creates the database file if needed, applies migrations and returns
// the store.
func Open(path string) (*DocumentStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := migrations.Up(migrations.SQLite, path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DocumentStore{db: db}, nil
}

// Get returns the document stored under key. found is false when no row exists.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := startSpan(ctx, "db.QueryRow", "SELECT")
	defer span.End()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		recordError(span, err)
		return nil, false, fmt.Errorf("load document %s: %w", key, err)
	}
	return []byte(body), true, nil
}

// Put upserts every document in docs inside one statement.
func (s *DocumentStore) Put(ctx context.Context, docs map[string][]byte) error {
	if len(docs) == 0 {
		return nil
	}

	ctx, span := startSpan(ctx, "db.Exec", "INSERT")
	defer span.End()

	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]string, len(keys))
	args := make([]any, 0, 2*len(keys))
	for i, k := range keys {
		rows[i] = "(?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))"
		args = append(args, k, string(docs[k]))
	}

	query := `INSERT INTO documents (key, body, updated_at) VALUES ` + strings.Join(rows, ", ") +
		` ON CONFLICT (key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		recordError(span, err)
		return fmt.Errorf("save documents: %w", err)
	}
	return nil
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return dbTracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", "documents"),
	))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
