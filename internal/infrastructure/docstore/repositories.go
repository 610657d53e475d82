package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	"finlink/internal/infrastructure/crypto"
)

// ConnectionRepository implements connection.Repository. Access credentials
// are encrypted before they are written and decrypted on load.
type ConnectionRepository struct {
	store Store
	enc   *crypto.Encryptor
}

func NewConnectionRepository(store Store, enc *crypto.Encryptor) *ConnectionRepository {
	return &ConnectionRepository{store: store, enc: enc}
}

func (r *ConnectionRepository) Load(ctx context.Context) ([]connection.Connection, error) {
	body, found, err := r.store.Get(ctx, KeyConnections)
	if err != nil {
		return nil, err
	}
	conns := []connection.Connection{}
	if !found {
		return conns, nil
	}
	if err := json.Unmarshal(body, &conns); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}

	for i := range conns {
		plain, err := r.enc.Decrypt(conns[i].AccessCredential)
		if err != nil {
			return nil, fmt.Errorf("connection %s: failed to decrypt credential: %w", conns[i].ID, err)
		}
		conns[i].AccessCredential = plain
	}
	return conns, nil
}

func (r *ConnectionRepository) Save(ctx context.Context, conns []connection.Connection) error {
	sealed := make([]connection.Connection, len(conns))
	for i, c := range conns {
		ct, err := r.enc.Encrypt(c.AccessCredential)
		if err != nil {
			return fmt.Errorf("connection %s: failed to encrypt credential: %w", c.ID, err)
		}
		c.AccessCredential = ct
		sealed[i] = c
	}

	body, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("failed to encode connections: %w", err)
	}
	return r.store.Put(ctx, map[string][]byte{KeyConnections: body})
}

// LedgerRepository implements ledger.Repository over the cards and
// bankAccounts documents.
type LedgerRepository struct {
	store Store
}

func NewLedgerRepository(store Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// Load returns an empty ledger when nothing has been stored yet.
func (r *LedgerRepository) Load(ctx context.Context) (*ledger.Ledger, error) {
	l := &ledger.Ledger{Cards: []ledger.Card{}, BankAccounts: []ledger.BankAccount{}}
	if err := r.load(ctx, KeyCards, &l.Cards); err != nil {
		return nil, err
	}
	if err := r.load(ctx, KeyBankAccounts, &l.BankAccounts); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LedgerRepository) load(ctx context.Context, key string, dst any) error {
	body, found, err := r.store.Get(ctx, key)
	if err != nil || !found {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Save writes both documents in one Put.
func (r *LedgerRepository) Save(ctx context.Context, l *ledger.Ledger) error {
	cards := l.Cards
	if cards == nil {
		cards = []ledger.Card{}
	}
	banks := l.BankAccounts
	if banks == nil {
		banks = []ledger.BankAccount{}
	}

	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("failed to encode cards: %w", err)
	}
	banksJSON, err := json.Marshal(banks)
	if err != nil {
		return fmt.Errorf("failed to encode bank accounts: %w", err)
	}

	return r.store.Put(ctx, map[string][]byte{
		KeyCards:        cardsJSON,
		KeyBankAccounts: banksJSON,
	})
}
