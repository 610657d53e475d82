package sheets

import (
	"testing"
	"time"

	"finlink/internal/domain/reconcile"
)

func TestAutoFillRow(t *testing.T) {
	weekOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	synced := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	checking := 550.3
	vault := 2500.0

	tests := []struct {
		name       string
		suggestion reconcile.AutoFillSuggestion
		want       []any
	}{
		{
			name: "Full",
			suggestion: reconcile.AutoFillSuggestion{
				Checking: &checking,
				Vault:    &vault,
				Debts:    []reconcile.Debt{{Balance: 0.1}, {Balance: 0.2}, {Balance: 1234.56}},
				LastSync: &synced,
			},
			want: []any{"2026-03-02", "550.30", "2500.00", "1234.86", 3, "2026-03-01T18:30:00Z"},
		},
		{
			name:       "Nothing synced",
			suggestion: reconcile.AutoFillSuggestion{Debts: []reconcile.Debt{}},
			want:       []any{"2026-03-02", "", "", "0.00", 0, ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := autoFillRow(weekOf, tt.suggestion)
			if len(got) != len(tt.want) {
				t.Fatalf("row has %d cells, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("cell %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
