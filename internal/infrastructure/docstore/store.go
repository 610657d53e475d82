// Package docstore persists the connection and ledger documents on top of a
// pluggable key/document Store.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"

	"finlink/internal/infrastructure/migrations"
	"finlink/internal/infrastructure/postgres"
	"finlink/internal/infrastructure/sqlite"
	"finlink/internal/shared/config"
)

// Document keys
const (
	KeyConnections  = "connections"
	KeyCards        = "cards"
	KeyBankAccounts = "bankAccounts"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Store reads and writes whole documents by key. Put writes every given
// document or none of them.
type Store interface {
	Get(ctx context.Context, key string) (body []byte, found bool, err error)
	Put(ctx context.Context, docs map[string][]byte) error
	Close() error
}

// Open returns the Store selected by cfg.Storage.Backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Println("Storage: in-memory (data is lost on exit)")
		return NewMemoryStore(), nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Printf("Storage: sqlite at %s", cfg.Storage.SQLitePath)
		return s, nil

	case config.BackendPostgres:
		if err := migrations.Up(migrations.Postgres, cfg.Database.URL()); err != nil {
			return nil, err
		}
		db, err := postgres.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		log.Printf("Storage: postgres at %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		return postgres.NewDocumentStore(db), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Backend)
	}
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.docs[key]
	return slices.Clone(body), ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, docs map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range maps.All(docs) {
		m.docs[k] = slices.Clone(v)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
