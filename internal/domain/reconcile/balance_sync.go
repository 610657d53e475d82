package reconcile

import (
	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
)

// Summary line types
const (
	SummaryCredit     = "credit"
	SummaryDepository = "depository"
)

// SyncSummaryLine describes one balance applied to a local record.
type SyncSummaryLine struct {
	RecordID        string   `json:"recordId"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Balance         float64  `json:"balance"`
	PreviousBalance *float64 `json:"previousBalance"`
}

// BalanceSyncResult carries the updated collections. Connection is a copy of
// the input with any recovered link pointers attached.
type BalanceSyncResult struct {
	Connection          connection.Connection `json:"connection"`
	UpdatedCards        []ledger.Card         `json:"updatedCards"`
	UpdatedBankAccounts []ledger.BankAccount  `json:"updatedBankAccounts"`
	Summary             []SyncSummaryLine     `json:"summary"`
	Relinked            int                   `json:"relinked"`
	Skipped             int                   `json:"skipped"`
}

// ApplyBalanceSync copies every balance snapshot on conn onto the local record
// it is linked to. A missing link pointer is recovered from a record carrying
// the same external account id before the balance is applied. Balances that
// resolve to no record are skipped. The inputs are not modified.
func ApplyBalanceSync(conn connection.Connection, cards []ledger.Card, banks []ledger.BankAccount) BalanceSyncResult {
	out := conn.Clone()
	result := BalanceSyncResult{
		UpdatedCards:        append([]ledger.Card(nil), cards...),
		UpdatedBankAccounts: append([]ledger.BankAccount(nil), banks...),
		Summary:             []SyncSummaryLine{},
	}

	for i, acct := range out.Accounts {
		if acct.Balance == nil {
			continue
		}

		switch acct.Kind {
		case connection.KindCredit:
			if acct.LinkedCardID == "" {
				if idx := cardByExternalID(result.UpdatedCards, acct.ExternalAccountID); idx >= 0 {
					acct.LinkedCardID = result.UpdatedCards[idx].ID
					out.Accounts[i] = acct
					result.Relinked++
				}
			}
			idx := cardByID(result.UpdatedCards, acct.LinkedCardID)
			if idx < 0 {
				result.Skipped++
				continue
			}
			line := applyCardBalance(&result.UpdatedCards[idx], out, acct)
			result.Summary = append(result.Summary, line)

		case connection.KindDepository:
			if acct.LinkedBankAccountID == "" {
				if idx := bankByExternalID(result.UpdatedBankAccounts, acct.ExternalAccountID); idx >= 0 {
					acct.LinkedBankAccountID = result.UpdatedBankAccounts[idx].ID
					out.Accounts[i] = acct
					result.Relinked++
				}
			}
			idx := bankByID(result.UpdatedBankAccounts, acct.LinkedBankAccountID)
			if idx < 0 {
				result.Skipped++
				continue
			}
			line := applyBankBalance(&result.UpdatedBankAccounts[idx], out, acct)
			result.Summary = append(result.Summary, line)

		default:
			result.Skipped++
		}
	}

	result.Connection = out
	return result
}

func applyCardBalance(card *ledger.Card, conn connection.Connection, acct connection.ExternalAccount) SyncSummaryLine {
	previous := card.ExternalBalance
	b := acct.Balance

	card.ExternalBalance = b.Current
	card.ExternalAvailable = b.Available
	card.ExternalLimit = b.Limit
	card.ExternalLastSync = conn.LastSync
	card.ExternalAccountID = acct.ExternalAccountID
	card.ExternalConnectionID = conn.ID
	if card.Limit == nil && b.Limit != nil {
		limit := *b.Limit
		card.Limit = &limit
	}

	return SyncSummaryLine{
		RecordID:        card.ID,
		Name:            card.Label(),
		Type:            SummaryCredit,
		Balance:         valueOrZero(b.Current),
		PreviousBalance: previous,
	}
}

func applyBankBalance(bank *ledger.BankAccount, conn connection.Connection, acct connection.ExternalAccount) SyncSummaryLine {
	previous := preferAvailable(bank.ExternalAvailable, bank.ExternalBalance)
	b := acct.Balance

	bank.ExternalBalance = b.Current
	bank.ExternalAvailable = b.Available
	bank.ExternalLastSync = conn.LastSync
	bank.ExternalAccountID = acct.ExternalAccountID
	bank.ExternalConnectionID = conn.ID

	return SyncSummaryLine{
		RecordID:        bank.ID,
		Name:            bank.Label(),
		Type:            SummaryDepository,
		Balance:         valueOrZero(preferAvailable(b.Available, b.Current)),
		PreviousBalance: previous,
	}
}

func preferAvailable(available, current *float64) *float64 {
	if available != nil {
		return available
	}
	return current
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func cardByID(cards []ledger.Card, id string) int {
	if id == "" {
		return -1
	}
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}

func cardByExternalID(cards []ledger.Card, extID string) int {
	if extID == "" {
		return -1
	}
	for i := range cards {
		if cards[i].ExternalAccountID == extID {
			return i
		}
	}
	return -1
}

func bankByID(banks []ledger.BankAccount, id string) int {
	if id == "" {
		return -1
	}
	for i := range banks {
		if banks[i].ID == id {
			return i
		}
	}
	return -1
}

func bankByExternalID(banks []ledger.BankAccount, extID string) int {
	if extID == "" {
		return -1
	}
	for i := range banks {
		if banks[i].ExternalAccountID == extID {
			return i
		}
	}
	return -1
}
