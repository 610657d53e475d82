package ledger

import (
	"errors"
	"time"
)

// Bank account types
const (
	TypeChecking = "checking"
	TypeSavings  = "savings"
)

var ErrRecordNotFound = errors.New("record not found")

// ExternalShadow holds the externally sourced fields mirrored onto a local
// record. Only the synchronization engine writes them.
type ExternalShadow struct {
	ExternalAccountID    string     `json:"_externalAccountId,omitempty"`
	ExternalConnectionID string     `json:"_externalConnectionId,omitempty"`
	ExternalBalance      *float64   `json:"_externalBalance,omitempty"`
	ExternalAvailable    *float64   `json:"_externalAvailable,omitempty"`
	ExternalLastSync     *time.Time `json:"_externalLastSync,omitempty"`
}

// Card is a user-managed credit card record.
type Card struct {
	ID           string   `json:"id"`
	Institution  string   `json:"institution"`
	Name         string   `json:"name"`
	Nickname     string   `json:"nickname,omitempty"`
	Last4        string   `json:"last4,omitempty"`
	MaskedNumber string   `json:"maskedNumber,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Limit        *float64 `json:"limit"`

	ExternalShadow
	ExternalLimit *float64 `json:"_externalLimit,omitempty"`
}

// BankAccount is a user-managed checking or savings account record.
type BankAccount struct {
	ID          string `json:"id"`
	Institution string `json:"institution"`
	Name        string `json:"name"`
	Nickname    string `json:"nickname,omitempty"`
	Type        string `json:"type"`

	ExternalShadow
}

// Ledger is the pair of local collections the engine reconciles against.
type Ledger struct {
	Cards        []Card        `json:"cards"`
	BankAccounts []BankAccount `json:"bankAccounts"`
}

// Label returns the nickname when set, otherwise the name.
func (c Card) Label() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.Name
}

// Label returns the nickname when set, otherwise the name.
func (b BankAccount) Label() string {
	if b.Nickname != "" {
		return b.Nickname
	}
	return b.Name
}

// DetachConnection clears shadow fields that point at connectionID and
// reports how many records were touched. User-entered fields are kept.
func (l *Ledger) DetachConnection(connectionID string) int {
	n := 0
	for i := range l.Cards {
		if l.Cards[i].ExternalConnectionID == connectionID {
			l.Cards[i].ExternalShadow = ExternalShadow{}
			l.Cards[i].ExternalLimit = nil
			n++
		}
	}
	for i := range l.BankAccounts {
		if l.BankAccounts[i].ExternalConnectionID == connectionID {
			l.BankAccounts[i].ExternalShadow = ExternalShadow{}
			n++
		}
	}
	return n
}
