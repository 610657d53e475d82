package connection

import (
	"errors"
	"fmt"
	"time"
)

// AccountKind is the top-level account classification reported by the aggregation service.
type AccountKind string

const (
	KindDepository AccountKind = "depository"
	KindCredit     AccountKind = "credit"
	KindOther      AccountKind = "other"
)

// Domain errors
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidConnection  = errors.New("invalid connection")
)

// Connection is one linked institution: the credential used to talk to the
// aggregation service plus the accounts it reported.
type Connection struct {
	ID               string            `json:"id"`
	InstitutionName  string            `json:"institutionName"`
	InstitutionID    string            `json:"institutionId,omitempty"`
	AccessCredential string            `json:"accessCredential"`
	Accounts         []ExternalAccount `json:"accounts"`
	LastSync         *time.Time        `json:"lastSync,omitempty"`
	RequiresRelink   bool              `json:"requiresRelink,omitempty"` // set when the provider rejected the credential
}

// ExternalAccount is an account as reported by the aggregation service.
// At most one of LinkedCardID / LinkedBankAccountID is set, chosen by Kind.
type ExternalAccount struct {
	ExternalAccountID   string      `json:"accountId"`
	Name                string      `json:"name"`
	OfficialName        string      `json:"officialName,omitempty"`
	Kind                AccountKind `json:"type"`
	SubKind             string      `json:"subtype,omitempty"`
	Mask                string      `json:"mask,omitempty"`
	LinkedCardID        string      `json:"linkedCardId,omitempty"`
	LinkedBankAccountID string      `json:"linkedBankAccountId,omitempty"`
	Balance             *Balance    `json:"balance,omitempty"`
}

// Balance is the last balance snapshot attached to an ExternalAccount.
type Balance struct {
	Current      *float64 `json:"current"`
	Available    *float64 `json:"available"`
	Limit        *float64 `json:"limit"`
	CurrencyCode string   `json:"currencyCode,omitempty"`
}

// BalanceSnapshot is one entry of a balance-fetch response.
type BalanceSnapshot struct {
	ExternalAccountID string   `json:"accountId"`
	Current           *float64 `json:"current"`
	Available         *float64 `json:"available"`
	Limit             *float64 `json:"limit"`
	CurrencyCode      string   `json:"currencyCode"`
}

// DisplayName returns the official name when present, otherwise the display name.
func (a ExternalAccount) DisplayName() string {
	if a.OfficialName != "" {
		return a.OfficialName
	}
	return a.Name
}

// IsLinked reports whether the account carries a link pointer of either kind.
func (a ExternalAccount) IsLinked() bool {
	return a.LinkedCardID != "" || a.LinkedBankAccountID != ""
}

// Clone returns a copy of the connection whose Accounts slice can be modified
// without touching the original.
func (c Connection) Clone() Connection {
	out := c
	out.Accounts = make([]ExternalAccount, len(c.Accounts))
	copy(out.Accounts, c.Accounts)
	return out
}

// Validate checks the fields every persisted connection must carry.
func (c Connection) Validate() error {
	if c.ID == "" {
		return errors.New("connection ID is required")
	}
	if c.AccessCredential == "" {
		return errors.New("access credential is required")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.ExternalAccountID == "" {
			return errors.New("external account ID is required")
		}
		if _, dup := seen[a.ExternalAccountID]; dup {
			return errors.New("duplicate external account ID " + a.ExternalAccountID)
		}
		seen[a.ExternalAccountID] = struct{}{}
		if a.LinkedCardID != "" && a.Kind != KindCredit {
			return fmt.Errorf("account %s: linkedCardId is only allowed on credit accounts", a.ExternalAccountID)
		}
		if a.LinkedBankAccountID != "" && a.Kind != KindDepository {
			return fmt.Errorf("account %s: linkedBankAccountId is only allowed on depository accounts", a.ExternalAccountID)
		}
	}
	return nil
}

// WithBalances returns a copy of c with each snapshot attached to the account
// carrying the same external id. Snapshots for unknown accounts are ignored.
func WithBalances(c Connection, snapshots []BalanceSnapshot) (Connection, int) {
	out := c.Clone()
	index := make(map[string]int, len(out.Accounts))
	for i, a := range out.Accounts {
		index[a.ExternalAccountID] = i
	}

	attached := 0
	for _, s := range snapshots {
		i, ok := index[s.ExternalAccountID]
		if !ok {
			continue
		}
		out.Accounts[i].Balance = &Balance{
			Current:      s.Current,
			Available:    s.Available,
			Limit:        s.Limit,
			CurrencyCode: s.CurrencyCode,
		}
		attached++
	}
	return out, attached
}

// CarryLinks copies link pointers from prev onto next for accounts that share
// an external id and have no link of their own. Used when a re-link replaces
// a connection wholesale.
func CarryLinks(prev, next Connection) Connection {
	out := next.Clone()
	old := make(map[string]ExternalAccount, len(prev.Accounts))
	for _, a := range prev.Accounts {
		old[a.ExternalAccountID] = a
	}
	for i, a := range out.Accounts {
		p, ok := old[a.ExternalAccountID]
		if !ok || a.IsLinked() {
			continue
		}
		switch a.Kind {
		case KindCredit:
			out.Accounts[i].LinkedCardID = p.LinkedCardID
		case KindDepository:
			out.Accounts[i].LinkedBankAccountID = p.LinkedBankAccountID
		}
	}
	return out
}
