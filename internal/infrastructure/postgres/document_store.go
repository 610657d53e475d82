package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DocumentStore keeps whole JSON documents in the documents table, one row
// per key.
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the document stored under key. found is false when no row exists.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = $1`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load document %s: %w", key, err)
	}
	return body, true, nil
}

// Put replaces every document in docs with a single upsert statement, so the
// set is written atomically.
func (s *DocumentStore) Put(ctx context.Context, docs map[string][]byte) error {
	if len(docs) == 0 {
		return nil
	}

	query, args := upsertDocuments(docs)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save documents: %w", err)
	}
	return nil
}

func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// upsertDocuments builds a multi-row upsert. Keys are sorted so the
// statement text is stable for a given key set.
func upsertDocuments(docs map[string][]byte) (string, []any) {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]string, len(keys))
	args := make([]any, 0, 2*len(keys))
	for i, k := range keys {
		rows[i] = fmt.Sprintf("($%d, $%d::jsonb, NOW())", 2*i+1, 2*i+2)
		args = append(args, k, string(docs[k]))
	}

	query := `INSERT INTO documents (key, body, updated_at) VALUES ` +
		strings.Join(rows, ", ") +
		` ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
	return query, args
}
