package openfinance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	"finlink/internal/domain/reconcile"
)

// Notifier sends connection notices. Implementations log their own failures.
type Notifier interface {
	SendReviewNeeded(ctx context.Context, connectionID, institution string, unmatched int)
	SendRelinkRequired(ctx context.Context, connectionID, institution string)
	SendSyncComplete(ctx context.Context, connectionID, institution string, updated int)
}

// LinkService imports newly linked connections and removes them again.
type LinkService struct {
	lock        *DocLock
	connections *connection.Service
	ledgerRepo  ledger.Repository
	matcher     *reconcile.Matcher
	notifier    Notifier
}

// NewLinkService creates a new link service. notifier may be nil.
func NewLinkService(
	lock *DocLock,
	connections *connection.Service,
	ledgerRepo ledger.Repository,
	matcher *reconcile.Matcher,
	notifier Notifier,
) *LinkService {
	return &LinkService{
		lock:        lock,
		connections: connections,
		ledgerRepo:  ledgerRepo,
		matcher:     matcher,
		notifier:    notifier,
	}
}

// ImportConnection stores a freshly linked connection and matches its
// accounts against the ledger. A re-link of a known connection id replaces
// the stored connection but keeps link pointers for accounts that are still
// reported. Fabricated records are appended to the ledger, which is saved
// before the connection so no pointer ever references a missing record.
func (s *LinkService) ImportConnection(ctx context.Context, linked connection.Connection) (*reconcile.MatchResult, error) {
	if err := linked.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", connection.ErrInvalidConnection, err)
	}

	ctx, span := ofTracer.Start(ctx, "openfinance.import_connection",
		trace.WithAttributes(
			attribute.String("connection.id", linked.ID),
			attribute.Int("connection.accounts", len(linked.Accounts)),
		),
	)
	defer span.End()

	var result reconcile.MatchResult
	err := s.lock.Run(ctx, func() error {
		prev, err := s.connections.Get(ctx, linked.ID)
		switch {
		case err == nil:
			linked = connection.CarryLinks(*prev, linked)
			if linked.LastSync == nil {
				linked.LastSync = prev.LastSync
			}
			log.Printf("Connection %s: Re-link replaces stored connection", linked.ID)
		case errors.Is(err, connection.ErrConnectionNotFound):
		default:
			return fmt.Errorf("failed to load connection: %w", err)
		}
		linked.RequiresRelink = false

		l, err := s.ledgerRepo.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}

		result = s.matcher.AutoMatchAccounts(linked, l.Cards, l.BankAccounts)

		if len(result.NewCards) > 0 || len(result.NewBankAccounts) > 0 {
			l.Cards = append(l.Cards, result.NewCards...)
			l.BankAccounts = append(l.BankAccounts, result.NewBankAccounts...)
			if err := s.ledgerRepo.Save(ctx, l); err != nil {
				return fmt.Errorf("failed to save ledger: %w", err)
			}
		}

		if err := s.connections.Upsert(ctx, result.Connection); err != nil {
			return fmt.Errorf("failed to save connection: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	linkedCount := recordMatchMetrics(ctx, result)
	log.Printf("Connection %s: Import complete - Linked=%d, Created=%d, Unmatched=%d",
		linked.ID, linkedCount, len(result.NewCards)+len(result.NewBankAccounts), len(result.Unmatched))

	if s.notifier != nil && len(result.Unmatched) > 0 {
		s.notifier.SendReviewNeeded(ctx, linked.ID, linked.InstitutionName, len(result.Unmatched))
	}

	return &result, nil
}

// RemoveConnection deletes a connection and clears the shadow fields of the
// records it fed, then revokes its credential on a best-effort basis. The
// revoke call runs after the document lock is released.
func (s *LinkService) RemoveConnection(ctx context.Context, id string) (*connection.RemoveOutcome, error) {
	var removed *connection.Connection
	err := s.lock.Run(ctx, func() error {
		var err error
		removed, err = s.connections.Delete(ctx, id)
		if err != nil {
			return err
		}

		l, err := s.ledgerRepo.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}
		if n := l.DetachConnection(id); n > 0 {
			if err := s.ledgerRepo.Save(ctx, l); err != nil {
				return fmt.Errorf("failed to save ledger: %w", err)
			}
			log.Printf("Connection %s: Detached %d local records", id, n)
		}
		return nil
	})
	if removed == nil {
		return nil, err
	}

	outcome := s.connections.Revoke(ctx, removed)
	return outcome, err
}

// recordMatchMetrics counts one pass and returns how many accounts linked to
// records that already existed.
func recordMatchMetrics(ctx context.Context, result reconcile.MatchResult) int {
	linked := 0
	for _, m := range result.Matched {
		if m.Tier == reconcile.TierFabricated {
			recordsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(m.LinkedType))))
			continue
		}
		linked++
		accountsLinked.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", strconv.Itoa(int(m.Tier)))))
	}
	if n := len(result.Unmatched); n > 0 {
		accountsPending.Add(ctx, int64(n))
	}
	return linked
}
