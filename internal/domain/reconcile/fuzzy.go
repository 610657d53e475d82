package reconcile

import (
	"strings"
	"unicode"
)

// fullCoverageBonus lifts a catalog name that contains every external token
// above any partial overlap.
const fullCoverageBonus = 10

// tokenize splits s into lower-case alphanumeric words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// FuzzyMatchCardName picks the catalog product name closest to externalName.
//
// An exact case-insensitive match wins outright. Otherwise each catalog name
// scores the number of its tokens found among externalName's tokens. A score
// equal to the external token count, repeats included, earns a bonus; any
// other name must reach half that count to qualify. The first highest score
// wins. With no qualifying name, externalName is returned unchanged.
func FuzzyMatchCardName(externalName string, catalogNames []string) string {
	if externalName == "" || len(catalogNames) == 0 {
		return externalName
	}

	for _, name := range catalogNames {
		if strings.EqualFold(name, externalName) {
			return name
		}
	}

	extTokens := tokenize(externalName)
	if len(extTokens) == 0 {
		return externalName
	}
	extSet := make(map[string]struct{}, len(extTokens))
	for _, t := range extTokens {
		extSet[t] = struct{}{}
	}
	extCount := len(extTokens)

	best := externalName
	bestScore := -1
	for _, name := range catalogNames {
		score := 0
		for _, t := range tokenize(name) {
			if _, ok := extSet[t]; ok {
				score++
			}
		}

		switch {
		case score == extCount:
			score += fullCoverageBonus
		case float64(score) < float64(extCount)/2:
			continue
		}

		if score > bestScore {
			best = name
			bestScore = score
		}
	}

	return best
}
