package reconcile

import (
	"fmt"
	"strings"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
)

// LinkedType names the kind of local record an external account resolved to.
type LinkedType string

const (
	LinkedCard        LinkedType = "card"
	LinkedBankAccount LinkedType = "bankAccount"
)

// Tier records which rule produced a match. Lower is more confident.
type Tier int

const (
	TierIdentity   Tier = 1 // stored external id, link pointer or deterministic id
	TierMask       Tier = 2 // last four digits within the same institution
	TierName       Tier = 3 // name containment within the same institution
	TierFabricated Tier = 4 // no match; a new local record was created
)

// minNameLen is the shortest normalized name allowed to take part in a
// containment comparison.
const minNameLen = 4

// CatalogFunc returns the known product names for an issuer, or nil.
type CatalogFunc func(issuer string) []string

// IDFunc derives the local id of a fabricated record from an external account
// id. It must return the same id for the same input on every call.
type IDFunc func(externalAccountID string) string

// DefaultID prefixes the external account id.
func DefaultID(externalAccountID string) string {
	return "plaid_" + externalAccountID
}

// Match is one external account resolved to a local record.
type Match struct {
	Account    connection.ExternalAccount `json:"externalAccount"`
	LinkedID   string                     `json:"linkedId"`
	LinkedType LinkedType                 `json:"linkedType"`
	Tier       Tier                       `json:"tier"`
}

// MatchResult is the outcome of one AutoMatchAccounts pass. Connection is a
// copy of the input with link pointers attached; the input is left untouched.
type MatchResult struct {
	Connection      connection.Connection        `json:"connection"`
	Matched         []Match                      `json:"matched"`
	Unmatched       []connection.ExternalAccount `json:"unmatched"`
	NewCards        []ledger.Card                `json:"newCards"`
	NewBankAccounts []ledger.BankAccount         `json:"newBankAccounts"`
}

// Matcher resolves external accounts to local records.
type Matcher struct {
	catalog CatalogFunc
	newID   IDFunc
}

// NewMatcher creates a matcher. A nil catalog disables product-name matching
// and a nil newID falls back to DefaultID.
func NewMatcher(catalog CatalogFunc, newID IDFunc) *Matcher {
	if catalog == nil {
		catalog = func(string) []string { return nil }
	}
	if newID == nil {
		newID = DefaultID
	}
	return &Matcher{catalog: catalog, newID: newID}
}

// AutoMatchAccounts runs the default matcher.
func AutoMatchAccounts(conn connection.Connection, cards []ledger.Card, banks []ledger.BankAccount, catalog CatalogFunc) MatchResult {
	return NewMatcher(catalog, nil).AutoMatchAccounts(conn, cards, banks)
}

// matchState is the accumulator threaded through the accounts of one
// connection. Records fabricated for earlier accounts are visible to later
// ones, and claimed ids keep the mapping injective.
type matchState struct {
	connID       string
	reported     map[string]bool // external account ids the connection reports
	cards        []ledger.Card
	banks        []ledger.BankAccount
	claimedCards map[string]string // card id -> external account id
	claimedBanks map[string]string // bank account id -> external account id
}

// free reports whether a record may be linked to extID. A record is taken
// when another account claimed it in this pass, or when it belongs to a
// different account this same connection still reports.
func (st *matchState) free(claimed map[string]string, id string, shadow ledger.ExternalShadow, extID string) bool {
	if owner, ok := claimed[id]; ok && owner != extID {
		return false
	}
	if shadow.ExternalAccountID == "" || shadow.ExternalAccountID == extID {
		return true
	}
	return shadow.ExternalConnectionID != st.connID || !st.reported[shadow.ExternalAccountID]
}

func (st *matchState) cardFree(c ledger.Card, extID string) bool {
	return st.free(st.claimedCards, c.ID, c.ExternalShadow, extID)
}

func (st *matchState) bankFree(b ledger.BankAccount, extID string) bool {
	return st.free(st.claimedBanks, b.ID, b.ExternalShadow, extID)
}

// pointerValid reports whether a link pointer from extID may resolve to a
// record with the given shadow. A pointer that contradicts the record's own
// external account id is stale.
func pointerValid(shadow ledger.ExternalShadow, extID string) bool {
	return shadow.ExternalAccountID == "" || shadow.ExternalAccountID == extID
}

// seedClaims reserves records before any tier runs. Identity comes first:
// a record whose external account id is reported by this connection belongs
// to that account. Link pointers then claim only records nobody owns by
// identity; a pointer repeated by a later account is ignored.
func (st *matchState) seedClaims(accounts []connection.ExternalAccount) {
	for _, a := range accounts {
		if a.ExternalAccountID == "" {
			continue
		}
		switch a.Kind {
		case connection.KindCredit:
			for _, c := range st.cards {
				if _, taken := st.claimedCards[c.ID]; !taken && c.ExternalAccountID == a.ExternalAccountID {
					st.claimedCards[c.ID] = a.ExternalAccountID
					break
				}
			}
		case connection.KindDepository:
			for _, b := range st.banks {
				if _, taken := st.claimedBanks[b.ID]; !taken && b.ExternalAccountID == a.ExternalAccountID {
					st.claimedBanks[b.ID] = a.ExternalAccountID
					break
				}
			}
		}
	}

	for _, a := range accounts {
		if a.ExternalAccountID == "" {
			continue
		}
		switch {
		case a.Kind == connection.KindCredit && a.LinkedCardID != "":
			for _, c := range st.cards {
				if c.ID != a.LinkedCardID {
					continue
				}
				if _, taken := st.claimedCards[c.ID]; !taken && pointerValid(c.ExternalShadow, a.ExternalAccountID) {
					st.claimedCards[c.ID] = a.ExternalAccountID
				}
				break
			}
		case a.Kind == connection.KindDepository && a.LinkedBankAccountID != "":
			for _, b := range st.banks {
				if b.ID != a.LinkedBankAccountID {
					continue
				}
				if _, taken := st.claimedBanks[b.ID]; !taken && pointerValid(b.ExternalShadow, a.ExternalAccountID) {
					st.claimedBanks[b.ID] = a.ExternalAccountID
				}
				break
			}
		}
	}
}

// AutoMatchAccounts links every account of conn to an existing card or bank
// account, fabricating a new record when no tier matches. Accounts of other
// kinds are returned in Unmatched.
func (m *Matcher) AutoMatchAccounts(conn connection.Connection, cards []ledger.Card, banks []ledger.BankAccount) MatchResult {
	out := conn.Clone()
	result := MatchResult{
		Matched:         []Match{},
		Unmatched:       []connection.ExternalAccount{},
		NewCards:        []ledger.Card{},
		NewBankAccounts: []ledger.BankAccount{},
	}

	st := &matchState{
		connID:       conn.ID,
		reported:     make(map[string]bool, len(out.Accounts)),
		cards:        append([]ledger.Card(nil), cards...),
		banks:        append([]ledger.BankAccount(nil), banks...),
		claimedCards: make(map[string]string),
		claimedBanks: make(map[string]string),
	}
	for _, a := range out.Accounts {
		if a.ExternalAccountID != "" {
			st.reported[a.ExternalAccountID] = true
		}
	}
	st.seedClaims(out.Accounts)

	for i, acct := range out.Accounts {
		if acct.ExternalAccountID == "" {
			result.Unmatched = append(result.Unmatched, acct)
			continue
		}

		switch acct.Kind {
		case connection.KindCredit:
			id, tier, fabricated := m.matchCard(out, acct, st)
			st.claimedCards[id] = acct.ExternalAccountID
			acct.LinkedCardID = id
			acct.LinkedBankAccountID = ""
			out.Accounts[i] = acct
			if fabricated != nil {
				result.NewCards = append(result.NewCards, *fabricated)
			}
			result.Matched = append(result.Matched, Match{Account: acct, LinkedID: id, LinkedType: LinkedCard, Tier: tier})

		case connection.KindDepository:
			id, tier, fabricated := m.matchBank(out, acct, st)
			st.claimedBanks[id] = acct.ExternalAccountID
			acct.LinkedBankAccountID = id
			acct.LinkedCardID = ""
			out.Accounts[i] = acct
			if fabricated != nil {
				result.NewBankAccounts = append(result.NewBankAccounts, *fabricated)
			}
			result.Matched = append(result.Matched, Match{Account: acct, LinkedID: id, LinkedType: LinkedBankAccount, Tier: tier})

		default:
			acct.LinkedCardID = ""
			acct.LinkedBankAccountID = ""
			out.Accounts[i] = acct
			result.Unmatched = append(result.Unmatched, acct)
		}
	}

	result.Connection = out
	return result
}

// matchCard returns the id of the card acct resolves to. When a card had to
// be fabricated it is returned as well and appended to the state.
func (m *Matcher) matchCard(conn connection.Connection, acct connection.ExternalAccount, st *matchState) (string, Tier, *ledger.Card) {
	extID := acct.ExternalAccountID
	fabricatedID := m.newID(extID)

	// Tier 1: identity.
	for _, c := range st.cards {
		if c.ExternalAccountID == extID && st.cardFree(c, extID) {
			return c.ID, TierIdentity, nil
		}
	}
	for _, c := range st.cards {
		if (c.ID == acct.LinkedCardID || c.ID == fabricatedID) && pointerValid(c.ExternalShadow, extID) && st.cardFree(c, extID) {
			return c.ID, TierIdentity, nil
		}
	}

	// Tier 2: mask + institution.
	if l4 := last4Of(acct.Mask); l4 != "" {
		for _, c := range st.cards {
			if !st.cardFree(c, extID) || !sameInstitution(c.Institution, conn.InstitutionName) {
				continue
			}
			if cl4, ok := ExtractLast4(c); ok && cl4 == l4 {
				return c.ID, TierMask, nil
			}
		}
	}

	// Tier 3: name containment + institution.
	if extName := NormText(acct.DisplayName()); len(extName) >= minNameLen {
		for _, c := range st.cards {
			if !st.cardFree(c, extID) || !sameInstitution(c.Institution, conn.InstitutionName) {
				continue
			}
			if namesOverlap(NormText(c.Label()), extName) {
				return c.ID, TierName, nil
			}
		}
	}

	card := m.fabricateCard(conn, acct, fabricatedID)
	st.cards = append(st.cards, card)
	return card.ID, TierFabricated, &card
}

// matchBank is the depository counterpart of matchCard. Deposit accounts
// carry no reliable mask, so tiers 2 and 3 collapse into one name-or-subtype
// rule that still requires the same institution.
func (m *Matcher) matchBank(conn connection.Connection, acct connection.ExternalAccount, st *matchState) (string, Tier, *ledger.BankAccount) {
	extID := acct.ExternalAccountID
	fabricatedID := m.newID(extID)

	for _, b := range st.banks {
		if b.ExternalAccountID == extID && st.bankFree(b, extID) {
			return b.ID, TierIdentity, nil
		}
	}
	for _, b := range st.banks {
		if (b.ID == acct.LinkedBankAccountID || b.ID == fabricatedID) && pointerValid(b.ExternalShadow, extID) && st.bankFree(b, extID) {
			return b.ID, TierIdentity, nil
		}
	}

	name := NormText(acct.Name)
	official := NormText(acct.OfficialName)
	subKind := NormText(acct.SubKind)
	for _, b := range st.banks {
		if !st.bankFree(b, extID) || !sameInstitution(b.Institution, conn.InstitutionName) {
			continue
		}
		label := NormText(b.Label())
		if namesOverlap(label, name) || namesOverlap(label, official) ||
			(subKind != "" && subKind == NormText(b.Type)) {
			return b.ID, TierName, nil
		}
	}

	bank := fabricateBankAccount(conn, acct, fabricatedID)
	st.banks = append(st.banks, bank)
	return bank.ID, TierFabricated, &bank
}

// namesOverlap reports whether either normalized name contains the other.
// Both must be at least minNameLen long.
func namesOverlap(a, b string) bool {
	if len(a) < minNameLen || len(b) < minNameLen {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func (m *Matcher) fabricateCard(conn connection.Connection, acct connection.ExternalAccount, id string) ledger.Card {
	issuer := issuerLabel(conn.InstitutionName)

	name := FuzzyMatchCardName(acct.DisplayName(), m.catalog(issuer))
	if strings.TrimSpace(name) == "" {
		name = issuer + " Card"
	}

	card := ledger.Card{
		ID:           id,
		Institution:  issuer,
		Name:         name,
		MaskedNumber: acct.Mask,
		Last4:        last4Of(acct.Mask),
		Notes:        provenanceNote(conn, acct),
	}
	card.ExternalAccountID = acct.ExternalAccountID
	card.ExternalConnectionID = conn.ID
	return card
}

func fabricateBankAccount(conn connection.Connection, acct connection.ExternalAccount, id string) ledger.BankAccount {
	accountType := ledger.TypeChecking
	if strings.Contains(NormText(acct.SubKind), "saving") {
		accountType = ledger.TypeSavings
	}

	name := strings.TrimSpace(acct.DisplayName())
	if name == "" {
		name = strings.ToUpper(accountType[:1]) + accountType[1:]
	}

	bank := ledger.BankAccount{
		ID:          id,
		Institution: issuerLabel(conn.InstitutionName),
		Name:        name,
		Type:        accountType,
	}
	bank.ExternalAccountID = acct.ExternalAccountID
	bank.ExternalConnectionID = conn.ID
	return bank
}

// provenanceNote is the human-readable note on a fabricated card. The masked
// number is written in the bullet form ExtractLast4 reads back.
func provenanceNote(conn connection.Connection, acct connection.ExternalAccount) string {
	source := strings.TrimSpace(conn.InstitutionName)
	if source == "" {
		source = "linked institution"
	}
	if acct.Mask != "" {
		return fmt.Sprintf("Imported from %s (···%s)", source, acct.Mask)
	}
	return fmt.Sprintf("Imported from %s", source)
}
