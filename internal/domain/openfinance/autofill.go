package openfinance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"finlink/internal/domain/ledger"
	"finlink/internal/domain/reconcile"
)

// ErrExportDisabled is returned by Export when no exporter is configured.
var ErrExportDisabled = errors.New("auto-fill export is not configured")

// Exporter writes one weekly auto-fill row to an external destination.
type Exporter interface {
	AppendAutoFill(ctx context.Context, weekOf time.Time, s reconcile.AutoFillSuggestion) error
}

// AutoFillService serves the weekly auto-fill figures.
type AutoFillService struct {
	ledgerRepo ledger.Repository
	exporter   Exporter
}

// NewAutoFillService creates a new auto-fill service. exporter may be nil.
func NewAutoFillService(ledgerRepo ledger.Repository, exporter Exporter) *AutoFillService {
	return &AutoFillService{ledgerRepo: ledgerRepo, exporter: exporter}
}

// Suggest computes the suggestion from the current ledger.
func (s *AutoFillService) Suggest(ctx context.Context) (*reconcile.AutoFillSuggestion, error) {
	l, err := s.ledgerRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	suggestion := reconcile.GetAutoFillSuggestion(l.Cards, l.BankAccounts)
	return &suggestion, nil
}

// Export computes the suggestion and appends it for the week starting weekOf.
func (s *AutoFillService) Export(ctx context.Context, weekOf time.Time) (*reconcile.AutoFillSuggestion, error) {
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}

	suggestion, err := s.Suggest(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.exporter.AppendAutoFill(ctx, weekOf, *suggestion); err != nil {
		return nil, fmt.Errorf("failed to export auto-fill: %w", err)
	}

	log.Printf("Auto-fill exported for week of %s (debts=%d)", weekOf.Format("2006-01-02"), len(suggestion.Debts))
	return suggestion, nil
}
