package openfinance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	"finlink/internal/domain/reconcile"
	ofclient "finlink/internal/infrastructure/openfinance"
)

// ErrProviderUnauthorized is returned when the provider rejects the stored
// credential (401). The connection is flagged for re-link.
var ErrProviderUnauthorized = errors.New("provider credential unauthorized")

// ErrRelinkRequired is returned for connections already flagged for re-link;
// they are not sent to the provider again until re-linked.
var ErrRelinkRequired = errors.New("connection requires re-link")

// RefreshOutcome reports one connection's refresh. Error is set when the
// refresh failed; local state is then unchanged.
type RefreshOutcome struct {
	ConnectionID   string                      `json:"connectionId"`
	Institution    string                      `json:"institutionName,omitempty"`
	Attached       int                         `json:"balancesAttached"`
	Updated        int                         `json:"recordsUpdated"`
	Relinked       int                         `json:"relinked"`
	Skipped        int                         `json:"skipped"`
	Summary        []reconcile.SyncSummaryLine `json:"summary,omitempty"`
	LastSync       *time.Time                  `json:"lastSync,omitempty"`
	RequiresRelink bool                        `json:"requiresRelink,omitempty"`
	Error          string                      `json:"_error,omitempty"`
}

// OK reports whether the refresh succeeded.
func (o RefreshOutcome) OK() bool {
	return o.Error == ""
}

// RefreshService fetches live balances and applies them to the ledger.
type RefreshService struct {
	lock        *DocLock
	guard       *connGuard
	connections *connection.Service
	ledgerRepo  ledger.Repository
	client      ofclient.ClientInterface
	notifier    Notifier
	concurrency int
	now         func() time.Time
}

// NewRefreshService creates a new refresh service. concurrency bounds
// RefreshAll; values below 1 mean one at a time.
func NewRefreshService(
	lock *DocLock,
	connections *connection.Service,
	ledgerRepo ledger.Repository,
	client ofclient.ClientInterface,
	notifier Notifier,
	concurrency int,
) *RefreshService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RefreshService{
		lock:        lock,
		guard:       newConnGuard(),
		connections: connections,
		ledgerRepo:  ledgerRepo,
		client:      client,
		notifier:    notifier,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// RefreshConnection fetches balances for one connection and applies them.
// The returned outcome is never nil; on failure it carries the error text
// and the error is returned as well. Refreshes of the same connection are
// serialized; the balance fetch runs outside the document lock.
func (s *RefreshService) RefreshConnection(ctx context.Context, id string) (*RefreshOutcome, error) {
	unlock := s.guard.lock(id)
	defer unlock()

	ctx, span := ofTracer.Start(ctx, "openfinance.refresh_connection",
		trace.WithAttributes(attribute.String("connection.id", id)),
	)
	defer span.End()

	start := time.Now()
	outcome := &RefreshOutcome{ConnectionID: id, Summary: []reconcile.SyncSummaryLine{}}

	err := s.refresh(ctx, id, outcome)

	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrProviderUnauthorized) || errors.Is(err, ErrRelinkRequired) {
			status = "unauthorized"
		}
		outcome.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("Connection %s: Refresh failed: %v", id, err)
	} else {
		log.Printf("Connection %s: Refresh complete - Attached=%d, Updated=%d, Relinked=%d, Skipped=%d",
			id, outcome.Attached, outcome.Updated, outcome.Relinked, outcome.Skipped)
	}
	refreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	refreshDuration.Record(ctx, time.Since(start).Seconds())

	return outcome, err
}

func (s *RefreshService) refresh(ctx context.Context, id string, outcome *RefreshOutcome) error {
	conn, err := s.connections.Get(ctx, id)
	if err != nil {
		return err
	}
	outcome.Institution = conn.InstitutionName
	if conn.RequiresRelink {
		outcome.RequiresRelink = true
		return ErrRelinkRequired
	}

	resp, statusCode, err := s.client.FetchBalancesWithStatus(ctx, conn.AccessCredential)
	if err != nil {
		if statusCode == http.StatusUnauthorized {
			outcome.RequiresRelink = true
			s.flagRelink(ctx, conn)
			return fmt.Errorf("%w: %v", ErrProviderUnauthorized, err)
		}
		return fmt.Errorf("failed to fetch balances: %w", err)
	}
	snapshots := toSnapshots(resp)

	err = s.lock.Run(ctx, func() error {
		// Reload under the lock: the stored connection may have changed while
		// the fetch was in flight.
		current, err := s.connections.Get(ctx, id)
		if err != nil {
			return err
		}

		withBalances, attached := connection.WithBalances(*current, snapshots)
		synced := s.now().UTC()
		withBalances.LastSync = &synced

		l, err := s.ledgerRepo.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}

		result := reconcile.ApplyBalanceSync(withBalances, l.Cards, l.BankAccounts)
		l.Cards = result.UpdatedCards
		l.BankAccounts = result.UpdatedBankAccounts

		if err := s.ledgerRepo.Save(ctx, l); err != nil {
			return fmt.Errorf("failed to save ledger: %w", err)
		}
		if err := s.connections.Upsert(ctx, result.Connection); err != nil {
			return fmt.Errorf("failed to save connection: %w", err)
		}

		outcome.Attached = attached
		outcome.Updated = len(result.Summary)
		outcome.Relinked = result.Relinked
		outcome.Skipped = result.Skipped
		outcome.Summary = result.Summary
		outcome.LastSync = &synced
		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier != nil && outcome.Updated > 0 {
		s.notifier.SendSyncComplete(ctx, id, outcome.Institution, outcome.Updated)
	}
	return nil
}

// flagRelink marks the connection as needing a re-link. The notice is sent
// only when the flag changes.
func (s *RefreshService) flagRelink(ctx context.Context, conn *connection.Connection) {
	log.Printf("Connection %s: Provider returned 401, flagging for re-link", conn.ID)

	changed := false
	err := s.lock.Run(ctx, func() error {
		current, err := s.connections.Get(ctx, conn.ID)
		if err != nil {
			return err
		}
		if current.RequiresRelink {
			return nil
		}
		current.RequiresRelink = true
		changed = true
		return s.connections.Upsert(ctx, *current)
	})
	if err != nil {
		log.Printf("Connection %s: Failed to flag for re-link: %v", conn.ID, err)
		return
	}

	if changed && s.notifier != nil {
		s.notifier.SendRelinkRequired(ctx, conn.ID, conn.InstitutionName)
	}
}

// RefreshAll refreshes every stored connection with bounded concurrency. One
// connection failing never stops the others; the returned outcomes follow
// the stored order. The error is non-nil only when the connection list
// itself could not be loaded.
func (s *RefreshService) RefreshAll(ctx context.Context) ([]RefreshOutcome, error) {
	conns, err := s.connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	ctx, span := ofTracer.Start(ctx, "openfinance.refresh_all",
		trace.WithAttributes(attribute.Int("connections", len(conns))),
	)
	defer span.End()

	outcomes := make([]RefreshOutcome, len(conns))
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, c := range conns {
		g.Go(func() error {
			out, _ := s.RefreshConnection(ctx, c.ID)
			outcomes[i] = *out
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	log.Printf("Refresh all complete - Succeeded=%d, Failed=%d", len(outcomes)-failed, failed)

	return outcomes, nil
}

// toSnapshots converts the provider response into domain balance snapshots.
func toSnapshots(resp *ofclient.BalanceResponse) []connection.BalanceSnapshot {
	if resp == nil {
		return nil
	}
	out := make([]connection.BalanceSnapshot, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, connection.BalanceSnapshot{
			ExternalAccountID: a.AccountID,
			Current:           a.Balances.Current,
			Available:         a.Balances.Available,
			Limit:             a.Balances.Limit,
			CurrencyCode:      a.Balances.CurrencyCode(),
		})
	}
	return out
}
