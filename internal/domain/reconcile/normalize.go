// Package reconcile links externally reported accounts to local cards and
// bank accounts and keeps their balances in sync.
//
// Everything in this package is pure: functions take values, return new
// values and never perform I/O. Persistence and fetching belong to the
// openfinance services that call into it.
package reconcile

import (
	"regexp"
	"strings"

	"finlink/internal/domain/ledger"
)

// institutionAliases maps lower-cased, whitespace-collapsed institution names
// reported by the aggregation service onto the labels used locally.
var institutionAliases = map[string]string{
	"american express":               "Amex",
	"american express card":          "Amex",
	"amex":                           "Amex",
	"jpmorgan chase":                 "Chase",
	"jpmorgan chase bank":            "Chase",
	"chase":                          "Chase",
	"navy federal credit union":      "Navy Federal",
	"navy federal":                   "Navy Federal",
	"capital one":                    "Capital One",
	"capital one bank":               "Capital One",
	"bank of america":                "Bank of America",
	"citibank":                       "Citi",
	"citibank online":                "Citi",
	"citi":                           "Citi",
	"wells fargo":                    "Wells Fargo",
	"discover":                       "Discover",
	"discover bank":                  "Discover",
	"discover financial services":    "Discover",
	"u.s. bank":                      "U.S. Bank",
	"us bank":                        "U.S. Bank",
	"barclays":                       "Barclays",
	"barclaycard":                    "Barclays",
	"barclays - cards":               "Barclays",
	"synchrony bank":                 "Synchrony",
	"synchrony":                      "Synchrony",
	"ally bank":                      "Ally",
	"ally":                           "Ally",
	"marcus by goldman sachs":        "Marcus",
	"goldman sachs":                  "Marcus",
	"usaa":                           "USAA",
	"usaa savings bank":              "USAA",
	"pnc":                            "PNC",
	"pnc bank":                       "PNC",
	"td bank":                        "TD Bank",
	"charles schwab":                 "Schwab",
	"schwab":                         "Schwab",
	"sofi":                           "SoFi",
	"sofi bank":                      "SoFi",
	"pentagon federal credit union":  "PenFed",
	"penfed credit union":            "PenFed",
	"bilt rewards":                   "Bilt",
	"bilt":                           "Bilt",
}

var (
	nonDigits = regexp.MustCompile(`[^0-9]`)
	// A bullet run followed by a 4-digit group, e.g. "(···9999)" or "•••• 1234".
	bulletLast4 = regexp.MustCompile(`[•·*]+\s*(\d{4})`)
)

// collapse lower-cases s and folds runs of whitespace into a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeInstitution maps raw onto its canonical label. Unknown names are
// returned unchanged.
func NormalizeInstitution(raw string) string {
	if alias, ok := institutionAliases[collapse(raw)]; ok {
		return alias
	}
	return raw
}

// NormText lower-cases and trims v.
func NormText(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormDigits strips every non-digit character from v.
func NormDigits(v string) string {
	return nonDigits.ReplaceAllString(v, "")
}

// last4Of returns the final four digits of v, or "" when v has fewer than four.
func last4Of(v string) string {
	d := NormDigits(v)
	if len(d) < 4 {
		return ""
	}
	return d[len(d)-4:]
}

// ExtractLast4 returns the card's last four digits from, in order, the
// explicit last-4 field, the masked number, or a bullet-prefixed group in the
// notes. The second return value is false when none yields four digits.
func ExtractLast4(card ledger.Card) (string, bool) {
	if l4 := last4Of(card.Last4); l4 != "" {
		return l4, true
	}
	if l4 := last4Of(card.MaskedNumber); l4 != "" {
		return l4, true
	}
	if m := bulletLast4.FindStringSubmatch(card.Notes); m != nil {
		return m[1], true
	}
	return "", false
}

// sameInstitution compares two raw institution labels after normalization.
// An empty label never matches.
func sameInstitution(a, b string) bool {
	na := NormText(NormalizeInstitution(a))
	nb := NormText(NormalizeInstitution(b))
	return na != "" && na == nb
}

// issuerLabel returns the normalized institution for a fabricated record.
func issuerLabel(raw string) string {
	label := strings.TrimSpace(NormalizeInstitution(raw))
	if label == "" {
		return "Other"
	}
	return label
}
