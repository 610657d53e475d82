package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"finlink/internal/domain/ledger"
)

// Debt is one card carrying a positive synced balance.
type Debt struct {
	CardID      string   `json:"cardId"`
	Name        string   `json:"name"`
	Institution string   `json:"institution"`
	Balance     float64  `json:"balance"`
	Limit       *float64 `json:"limit"`
}

// AutoFillSuggestion summarizes synced balances for the weekly input form.
type AutoFillSuggestion struct {
	Checking *float64   `json:"checking"`
	Vault    *float64   `json:"vault"`
	Debts    []Debt     `json:"debts"`
	LastSync *time.Time `json:"lastSync"`
}

// GetAutoFillSuggestion projects synced shadow balances into summary figures.
func GetAutoFillSuggestion(cards []ledger.Card, banks []ledger.BankAccount) AutoFillSuggestion {
	s := AutoFillSuggestion{
		Checking: sumBankBalances(banks, ledger.TypeChecking),
		Vault:    sumBankBalances(banks, ledger.TypeSavings),
		Debts:    []Debt{},
	}

	for _, c := range cards {
		if c.ExternalBalance == nil || *c.ExternalBalance <= 0 {
			continue
		}
		limit := c.ExternalLimit
		if limit == nil {
			limit = c.Limit
		}
		s.Debts = append(s.Debts, Debt{
			CardID:      c.ID,
			Name:        c.Label(),
			Institution: c.Institution,
			Balance:     *c.ExternalBalance,
			Limit:       limit,
		})
	}

	for _, b := range banks {
		s.LastSync = later(s.LastSync, b.ExternalLastSync)
	}
	for _, c := range cards {
		s.LastSync = later(s.LastSync, c.ExternalLastSync)
	}

	return s
}

// sumBankBalances adds available-or-current shadow balances of accounts with
// the given type. Nil means nothing contributed or the total is zero.
func sumBankBalances(banks []ledger.BankAccount, accountType string) *float64 {
	total := decimal.Zero
	contributed := false
	for _, b := range banks {
		if b.Type != accountType {
			continue
		}
		v := preferAvailable(b.ExternalAvailable, b.ExternalBalance)
		if v == nil {
			continue
		}
		total = total.Add(decimal.NewFromFloat(*v))
		contributed = true
	}
	if !contributed || total.IsZero() {
		return nil
	}
	f := total.InexactFloat64()
	return &f
}

// later returns whichever timestamp is more recent; on a tie the current one is kept.
func later(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		return candidate
	}
	return current
}
