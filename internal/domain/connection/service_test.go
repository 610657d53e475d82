package connection

import (
	"context"
	"errors"
	"testing"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	LoadFunc func(ctx context.Context) ([]Connection, error)
	SaveFunc func(ctx context.Context, conns []Connection) error
}

func (m *MockRepository) Load(ctx context.Context) ([]Connection, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return []Connection{}, nil
}

func (m *MockRepository) Save(ctx context.Context, conns []Connection) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, conns)
	}
	return nil
}

// MockRevoker is a mock implementation of Revoker interface
type MockRevoker struct {
	RevokeCredentialFunc func(ctx context.Context, accessCredential string) error
}

func (m *MockRevoker) RevokeCredential(ctx context.Context, accessCredential string) error {
	if m.RevokeCredentialFunc != nil {
		return m.RevokeCredentialFunc(ctx, accessCredential)
	}
	return nil
}

var errSaveFailed = errors.New("disk full")

func storedConnections() []Connection {
	return []Connection{
		{ID: "item_1", InstitutionName: "Chase", AccessCredential: "access-1",
			Accounts: []ExternalAccount{{ExternalAccountID: "a1", Kind: KindCredit}}},
		{ID: "item_2", InstitutionName: "Ally", AccessCredential: "access-2"},
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		loadErr error
		wantErr error
	}{
		{name: "Found", id: "item_2"},
		{name: "Not found", id: "missing", wantErr: ErrConnectionNotFound},
		{name: "Load error", id: "item_1", loadErr: errors.New("disk"), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{
				LoadFunc: func(ctx context.Context) ([]Connection, error) {
					if tt.loadErr != nil {
						return nil, tt.loadErr
					}
					return storedConnections(), nil
				},
			}
			svc := NewService(repo, nil)

			got, err := svc.Get(ctx, tt.id)
			switch {
			case tt.loadErr != nil:
				if !errors.Is(err, tt.loadErr) {
					t.Errorf("Get() error = %v, want %v", err, tt.loadErr)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("Get() unexpected error: %v", err)
				}
				if got.ID != tt.id {
					t.Errorf("Get() ID = %q, want %q", got.ID, tt.id)
				}
			}
		})
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		conn      Connection
		wantErr   error
		wantCount int
	}{
		{
			name:      "Replaces existing",
			conn:      Connection{ID: "item_1", InstitutionName: "Chase", AccessCredential: "access-new"},
			wantCount: 2,
		},
		{
			name:      "Appends new",
			conn:      Connection{ID: "item_3", AccessCredential: "access-3"},
			wantCount: 3,
		},
		{
			name:    "Missing credential",
			conn:    Connection{ID: "item_3"},
			wantErr: ErrInvalidConnection,
		},
		{
			name: "Card pointer on depository account",
			conn: Connection{ID: "item_3", AccessCredential: "x", Accounts: []ExternalAccount{
				{ExternalAccountID: "a", Kind: KindDepository, LinkedCardID: "card_1"},
			}},
			wantErr: ErrInvalidConnection,
		},
		{
			name: "Bank pointer on credit account",
			conn: Connection{ID: "item_3", AccessCredential: "x", Accounts: []ExternalAccount{
				{ExternalAccountID: "a", Kind: KindCredit, LinkedBankAccountID: "bank_1"},
			}},
			wantErr: ErrInvalidConnection,
		},
		{
			name: "Pointers on matching kinds",
			conn: Connection{ID: "item_3", AccessCredential: "x", Accounts: []ExternalAccount{
				{ExternalAccountID: "a", Kind: KindCredit, LinkedCardID: "card_1"},
				{ExternalAccountID: "b", Kind: KindDepository, LinkedBankAccountID: "bank_1"},
			}},
			wantCount: 3,
		},
		{
			name: "Duplicate account ids",
			conn: Connection{ID: "item_3", AccessCredential: "x", Accounts: []ExternalAccount{
				{ExternalAccountID: "a"}, {ExternalAccountID: "a"},
			}},
			wantErr: ErrInvalidConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var saved []Connection
			repo := &MockRepository{
				LoadFunc: func(ctx context.Context) ([]Connection, error) { return storedConnections(), nil },
				SaveFunc: func(ctx context.Context, conns []Connection) error {
					saved = conns
					return nil
				},
			}
			svc := NewService(repo, nil)

			err := svc.Upsert(ctx, tt.conn)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Upsert() error = %v, want %v", err, tt.wantErr)
				}
				if saved != nil {
					t.Error("Upsert() saved an invalid connection")
				}
				return
			}
			if err != nil {
				t.Fatalf("Upsert() unexpected error: %v", err)
			}
			if len(saved) != tt.wantCount {
				t.Fatalf("saved %d connections, want %d", len(saved), tt.wantCount)
			}
			ids := map[string]int{}
			for _, c := range saved {
				ids[c.ID]++
				if c.ID == tt.conn.ID && c.AccessCredential != tt.conn.AccessCredential {
					t.Errorf("stored credential = %q, want %q", c.AccessCredential, tt.conn.AccessCredential)
				}
			}
			for id, n := range ids {
				if n != 1 {
					t.Errorf("connection %s stored %d times", id, n)
				}
			}
		})
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		id          string
		revokeErr   error
		saveErr     error
		wantErr     error
		wantRevoked bool
	}{
		{name: "Revoked and removed", id: "item_1", wantRevoked: true},
		{name: "Revoke failure still removes", id: "item_1", revokeErr: errors.New("provider down")},
		{name: "Not found", id: "missing", wantErr: ErrConnectionNotFound},
		{name: "Save failure skips revoke", id: "item_1", saveErr: errSaveFailed, wantErr: errSaveFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var saved []Connection
			var revokedWith string
			var calls []string
			repo := &MockRepository{
				LoadFunc: func(ctx context.Context) ([]Connection, error) { return storedConnections(), nil },
				SaveFunc: func(ctx context.Context, conns []Connection) error {
					calls = append(calls, "save")
					if tt.saveErr != nil {
						return tt.saveErr
					}
					saved = conns
					return nil
				},
			}
			revoker := &MockRevoker{
				RevokeCredentialFunc: func(ctx context.Context, cred string) error {
					calls = append(calls, "revoke")
					revokedWith = cred
					return tt.revokeErr
				},
			}
			svc := NewService(repo, revoker)

			outcome, err := svc.Remove(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Remove() error = %v, want %v", err, tt.wantErr)
				}
				if revokedWith != "" {
					t.Errorf("credential %q revoked although the connection was not removed", revokedWith)
				}
				return
			}
			if err != nil {
				t.Fatalf("Remove() unexpected error: %v", err)
			}
			if !outcome.Removed || outcome.Revoked != tt.wantRevoked {
				t.Errorf("outcome = %+v, want removed and revoked=%v", outcome, tt.wantRevoked)
			}
			if tt.revokeErr != nil && outcome.RevokeError == "" {
				t.Error("RevokeError not recorded")
			}
			if revokedWith != "access-1" {
				t.Errorf("revoked credential = %q, want access-1", revokedWith)
			}
			if len(saved) != 1 || saved[0].ID != "item_2" {
				t.Errorf("saved = %+v, want only item_2", saved)
			}
			if len(calls) != 2 || calls[0] != "save" || calls[1] != "revoke" {
				t.Errorf("calls = %v, want [save revoke]", calls)
			}
		})
	}
}

func TestWithBalancesAndCarryLinks(t *testing.T) {
	prev := Connection{ID: "item_1", Accounts: []ExternalAccount{
		{ExternalAccountID: "a1", Kind: KindCredit, LinkedCardID: "card_1"},
		{ExternalAccountID: "a2", Kind: KindDepository, LinkedBankAccountID: "bank_1"},
	}}
	next := Connection{ID: "item_1", Accounts: []ExternalAccount{
		{ExternalAccountID: "a1", Kind: KindCredit},
		{ExternalAccountID: "a2", Kind: KindDepository, LinkedBankAccountID: "bank_9"},
		{ExternalAccountID: "a3", Kind: KindCredit},
	}}

	carried := CarryLinks(prev, next)
	if got := carried.Accounts[0].LinkedCardID; got != "card_1" {
		t.Errorf("a1 LinkedCardID = %q, want card_1", got)
	}
	if got := carried.Accounts[1].LinkedBankAccountID; got != "bank_9" {
		t.Errorf("a2 LinkedBankAccountID = %q, want existing bank_9", got)
	}
	if carried.Accounts[2].IsLinked() {
		t.Error("a3 should stay unlinked")
	}
	if next.Accounts[0].LinkedCardID != "" {
		t.Error("CarryLinks mutated its input")
	}

	current := 12.5
	withBal, n := WithBalances(carried, []BalanceSnapshot{
		{ExternalAccountID: "a1", Current: &current, CurrencyCode: "USD"},
		{ExternalAccountID: "unknown", Current: &current},
	})
	if n != 1 {
		t.Errorf("attached = %d, want 1", n)
	}
	if b := withBal.Accounts[0].Balance; b == nil || *b.Current != 12.5 || b.CurrencyCode != "USD" {
		t.Errorf("a1 balance = %+v", b)
	}
	if carried.Accounts[0].Balance != nil {
		t.Error("WithBalances mutated its input")
	}
}
