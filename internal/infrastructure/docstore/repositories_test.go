package docstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	"finlink/internal/infrastructure/crypto"
	"finlink/internal/shared/config"
)

const testKey = "01234567890123456789012345678901"

// MockStore is a mock implementation of Store
type MockStore struct {
	GetFunc func(ctx context.Context, key string) ([]byte, bool, error)
	PutFunc func(ctx context.Context, docs map[string][]byte) error
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, false, nil
}

func (m *MockStore) Put(ctx context.Context, docs map[string][]byte) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, docs)
	}
	return nil
}

func (m *MockStore) Close() error { return nil }

func newEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.NewEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewEncryptor() failed: %v", err)
	}
	return enc
}

func TestConnectionRepository_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewConnectionRepository(store, newEncryptor(t))

	synced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conns := []connection.Connection{{
		ID:               "item_1",
		InstitutionName:  "Chase",
		AccessCredential: "access-sandbox-secret",
		LastSync:         &synced,
		Accounts: []connection.ExternalAccount{
			{ExternalAccountID: "acc_1", Name: "Sapphire", Kind: connection.KindCredit, LinkedCardID: "card_1"},
		},
	}}

	if err := repo.Save(ctx, conns); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if conns[0].AccessCredential != "access-sandbox-secret" {
		t.Error("Save() modified the caller's slice")
	}

	raw, _, _ := store.Get(ctx, KeyConnections)
	if strings.Contains(string(raw), "access-sandbox-secret") {
		t.Fatalf("credential stored in plaintext: %s", raw)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 1 || got[0].AccessCredential != "access-sandbox-secret" {
		t.Fatalf("Load() = %+v", got)
	}
	if got[0].Accounts[0].LinkedCardID != "card_1" || !got[0].LastSync.Equal(synced) {
		t.Errorf("round trip lost fields: %+v", got[0])
	}
}

func TestConnectionRepository_Load(t *testing.T) {
	storeErr := errors.New("disk full")

	tests := []struct {
		name    string
		getFunc func(ctx context.Context, key string) ([]byte, bool, error)
		wantLen int
		wantErr bool
	}{
		{
			name:    "Nothing stored",
			getFunc: func(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil },
		},
		{
			name:    "Store failure",
			getFunc: func(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, storeErr },
			wantErr: true,
		},
		{
			name:    "Malformed document",
			getFunc: func(ctx context.Context, key string) ([]byte, bool, error) { return []byte(`{`), true, nil },
			wantErr: true,
		},
		{
			name: "Undecryptable credential",
			getFunc: func(ctx context.Context, key string) ([]byte, bool, error) {
				return []byte(`[{"id":"item_1","accessCredential":"bm90LXNlYWxlZA=="}]`), true, nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewConnectionRepository(&MockStore{GetFunc: tt.getFunc}, newEncryptor(t))
			got, err := repo.Load(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (got == nil || len(got) != tt.wantLen) {
				t.Errorf("Load() = %v, want empty non-nil slice", got)
			}
		})
	}
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	var puts int
	mem := NewMemoryStore()
	store := &MockStore{
		GetFunc: mem.Get,
		PutFunc: func(ctx context.Context, docs map[string][]byte) error {
			puts++
			if len(docs) != 2 {
				t.Errorf("Put() got %d documents, want cards and bankAccounts together", len(docs))
			}
			return mem.Put(ctx, docs)
		},
	}
	repo := NewLedgerRepository(store)

	empty, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if empty.Cards == nil || empty.BankAccounts == nil {
		t.Fatal("Load() on empty store returned nil collections")
	}

	balance := 120.5
	l := &ledger.Ledger{
		Cards: []ledger.Card{{
			ID: "card_1", Name: "Sapphire",
			ExternalShadow: ledger.ExternalShadow{ExternalAccountID: "acc_1", ExternalBalance: &balance},
		}},
	}
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	raw, _, _ := mem.Get(ctx, KeyBankAccounts)
	if string(raw) != "[]" {
		t.Errorf("bankAccounts document = %s, want []", raw)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if puts != 1 || len(got.Cards) != 1 || *got.Cards[0].ExternalBalance != 120.5 {
		t.Errorf("Load() = %+v after %d puts", got, puts)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		storage config.StorageConfig
		wantErr error
	}{
		{name: "Memory", storage: config.StorageConfig{Backend: config.BackendMemory}},
		{name: "SQLite", storage: config.StorageConfig{Backend: config.BackendSQLite, SQLitePath: t.TempDir() + "/finlink.db"}},
		{name: "Unknown", storage: config.StorageConfig{Backend: "redis"}, wantErr: ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(&config.Config{Storage: tt.storage})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil {
				defer store.Close()
				if err := store.Put(context.Background(), map[string][]byte{KeyCards: []byte(`[]`)}); err != nil {
					t.Errorf("Put() error: %v", err)
				}
			}
		})
	}
}
