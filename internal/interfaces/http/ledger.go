package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"finlink/internal/domain/ledger"
	"finlink/internal/domain/openfinance"
	"finlink/internal/domain/reconcile"
)

// AutoFiller computes and exports the weekly auto-fill figures.
type AutoFiller interface {
	Suggest(ctx context.Context) (*reconcile.AutoFillSuggestion, error)
	Export(ctx context.Context, weekOf time.Time) (*reconcile.AutoFillSuggestion, error)
}

// LedgerHandler serves the local card and bank account records.
type LedgerHandler struct {
	ledgerRepo ledger.Repository
	autoFill   AutoFiller
	now        func() time.Time
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(ledgerRepo ledger.Repository, autoFill AutoFiller) *LedgerHandler {
	return &LedgerHandler{ledgerRepo: ledgerRepo, autoFill: autoFill, now: time.Now}
}

// HandleCards returns all card records with their synced shadow fields.
func (h *LedgerHandler) HandleCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	l, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(l.Cards))
}

// HandleBankAccounts returns all bank account records.
func (h *LedgerHandler) HandleBankAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	l, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(l.BankAccounts))
}

// HandleAutoFill returns the current suggestion.
func (h *LedgerHandler) HandleAutoFill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	suggestion, err := h.autoFill.Suggest(r.Context())
	if err != nil {
		log.Printf("Error computing auto-fill: %v", err)
		http.Error(w, "Failed to compute auto-fill", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// HandleAutoFillExport appends the suggestion for ?weekOf=YYYY-MM-DD, or for
// the current week when omitted.
func (h *LedgerHandler) HandleAutoFillExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	weekOf := WeekStart(h.now())
	if v := r.URL.Query().Get("weekOf"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "weekOf must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		weekOf = parsed
	}

	suggestion, err := h.autoFill.Export(r.Context(), weekOf)
	if err != nil {
		if errors.Is(err, openfinance.ErrExportDisabled) {
			http.Error(w, "Auto-fill export is not configured", http.StatusServiceUnavailable)
			return
		}
		log.Printf("Error exporting auto-fill for %s: %v", weekOf.Format("2006-01-02"), err)
		http.Error(w, "Failed to export auto-fill", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (h *LedgerHandler) load(w http.ResponseWriter, r *http.Request) (*ledger.Ledger, bool) {
	l, err := h.ledgerRepo.Load(r.Context())
	if err != nil {
		log.Printf("Error loading ledger: %v", err)
		http.Error(w, "Failed to load ledger", http.StatusInternalServerError)
		return nil, false
	}
	return l, true
}

// WeekStart returns midnight UTC of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}
