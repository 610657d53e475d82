package reconcile

import (
	"testing"
	"time"

	"finlink/internal/domain/ledger"
)

func TestGetAutoFillSuggestion(t *testing.T) {
	older := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	banks := []ledger.BankAccount{
		{ID: "b1", Type: ledger.TypeChecking, ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(500), ExternalAvailable: f64(450.10), ExternalLastSync: &older}},
		{ID: "b2", Type: ledger.TypeChecking, ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(100.20)}},
		{ID: "b3", Type: ledger.TypeSavings, ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(2500), ExternalLastSync: &newer}},
		{ID: "b4", Type: ledger.TypeSavings},
	}
	cards := []ledger.Card{
		{ID: "c1", Name: "Gold", Nickname: "Daily", Institution: "Amex", Limit: f64(3000),
			ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(321.45)}, ExternalLimit: f64(5000)},
		{ID: "c2", Name: "Freedom", Institution: "Chase", Limit: f64(1500),
			ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(80)}},
		{ID: "c3", Name: "Paid off", ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(0)}},
		{ID: "c4", Name: "Credit", ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(-20)}},
		{ID: "c5", Name: "Never synced"},
	}

	got := GetAutoFillSuggestion(cards, banks)

	if got.Checking == nil || *got.Checking != 550.30 {
		t.Errorf("Checking = %v, want 550.30", got.Checking)
	}
	if got.Vault == nil || *got.Vault != 2500 {
		t.Errorf("Vault = %v, want 2500", got.Vault)
	}
	if len(got.Debts) != 2 {
		t.Fatalf("len(Debts) = %d, want 2", len(got.Debts))
	}
	if d := got.Debts[0]; d.CardID != "c1" || d.Name != "Daily" || d.Balance != 321.45 || *d.Limit != 5000 {
		t.Errorf("Debts[0] = %+v, want c1 Daily 321.45 limit 5000", d)
	}
	if d := got.Debts[1]; d.CardID != "c2" || *d.Limit != 1500 {
		t.Errorf("Debts[1] = %+v, want c2 with user limit 1500", d)
	}
	if got.LastSync == nil || !got.LastSync.Equal(newer) {
		t.Errorf("LastSync = %v, want %v", got.LastSync, newer)
	}
}

func TestGetAutoFillSuggestion_Empty(t *testing.T) {
	tests := []struct {
		name  string
		banks []ledger.BankAccount
	}{
		{name: "no records"},
		{name: "no synced balances", banks: []ledger.BankAccount{{ID: "b1", Type: ledger.TypeChecking}}},
		{name: "zero total", banks: []ledger.BankAccount{
			{ID: "b1", Type: ledger.TypeChecking, ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(40)}},
			{ID: "b2", Type: ledger.TypeChecking, ExternalShadow: ledger.ExternalShadow{ExternalBalance: f64(-40)}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetAutoFillSuggestion(nil, tt.banks)
			if got.Checking != nil || got.Vault != nil {
				t.Errorf("Checking = %v Vault = %v, want nil", got.Checking, got.Vault)
			}
			if got.Debts == nil || len(got.Debts) != 0 {
				t.Errorf("Debts = %v, want empty non-nil", got.Debts)
			}
			if got.LastSync != nil {
				t.Errorf("LastSync = %v, want nil", got.LastSync)
			}
		})
	}
}
