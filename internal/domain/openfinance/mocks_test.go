package openfinance

import (
	"context"
	"sync"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	ofclient "finlink/internal/infrastructure/openfinance"
)

// MockClient implements ofclient.ClientInterface
type MockClient struct {
	FetchBalancesWithStatusFunc func(ctx context.Context, accessToken string) (*ofclient.BalanceResponse, int, error)
	RevokeCredentialFunc        func(ctx context.Context, accessToken string) error
}

func (m *MockClient) FetchBalancesWithStatus(ctx context.Context, accessToken string) (*ofclient.BalanceResponse, int, error) {
	if m.FetchBalancesWithStatusFunc != nil {
		return m.FetchBalancesWithStatusFunc(ctx, accessToken)
	}
	return &ofclient.BalanceResponse{}, 200, nil
}

func (m *MockClient) RevokeCredential(ctx context.Context, accessToken string) error {
	if m.RevokeCredentialFunc != nil {
		return m.RevokeCredentialFunc(ctx, accessToken)
	}
	return nil
}

// MockNotifier implements Notifier and records what was sent
type MockNotifier struct {
	mu     sync.Mutex
	Review []string
	Relink []string
	Synced []string
}

func (m *MockNotifier) SendReviewNeeded(ctx context.Context, connectionID, institution string, unmatched int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Review = append(m.Review, connectionID)
}

func (m *MockNotifier) SendRelinkRequired(ctx context.Context, connectionID, institution string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Relink = append(m.Relink, connectionID)
}

func (m *MockNotifier) SendSyncComplete(ctx context.Context, connectionID, institution string, updated int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Synced = append(m.Synced, connectionID)
}

// memConnections is a connection.Repository over a slice.
type memConnections struct {
	mu      sync.Mutex
	conns   []connection.Connection
	saveErr error
}

func (r *memConnections) Load(ctx context.Context) ([]connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]connection.Connection, len(r.conns))
	for i, c := range r.conns {
		out[i] = c.Clone()
	}
	return out, nil
}

func (r *memConnections) Save(ctx context.Context, conns []connection.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.conns = make([]connection.Connection, len(conns))
	for i, c := range conns {
		r.conns[i] = c.Clone()
	}
	return nil
}

func (r *memConnections) get(id string) connection.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.ID == id {
			return c.Clone()
		}
	}
	return connection.Connection{}
}

// memLedger is a ledger.Repository over one value.
type memLedger struct {
	mu    sync.Mutex
	l     ledger.Ledger
	saves int
}

func (r *memLedger) Load(ctx context.Context) (*ledger.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &ledger.Ledger{
		Cards:        append([]ledger.Card(nil), r.l.Cards...),
		BankAccounts: append([]ledger.BankAccount(nil), r.l.BankAccounts...),
	}, nil
}

func (r *memLedger) Save(ctx context.Context, l *ledger.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.l = ledger.Ledger{
		Cards:        append([]ledger.Card(nil), l.Cards...),
		BankAccounts: append([]ledger.BankAccount(nil), l.BankAccounts...),
	}
	r.saves++
	return nil
}

func (r *memLedger) snapshot() ledger.Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.l
}

func f64(v float64) *float64 { return &v }
