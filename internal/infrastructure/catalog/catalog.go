// Package catalog holds the known bank and card product names used when a
// local record has to be created for an unmatched external account.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
)

//go:embed catalog.json
var embedded []byte

// Catalog maps a normalized issuer label onto its product names.
type Catalog struct {
	Banks   []string            `json:"banks"`
	Issuers map[string][]string `json:"issuers"`

	byKey map[string][]string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			// The embedded file is part of the build.
			panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Load reads a catalog file and layers it over the embedded one: issuers in
// the file replace the embedded entry of the same name. An empty path
// returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}

	base := Default()
	merged := &Catalog{Banks: slices.Clone(base.Banks), Issuers: make(map[string][]string, len(base.Issuers))}
	for k, v := range base.Issuers {
		merged.Issuers[k] = v
	}
	for k, v := range override.Issuers {
		merged.Issuers[k] = v
	}
	for _, b := range override.Banks {
		if !slices.Contains(merged.Banks, b) {
			merged.Banks = append(merged.Banks, b)
		}
	}
	merged.index()
	log.Printf("Catalog: loaded %d issuers from %s", len(override.Issuers), path)
	return merged, nil
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.index()
	return &c, nil
}

func (c *Catalog) index() {
	c.byKey = make(map[string][]string, len(c.Issuers))
	for issuer, names := range c.Issuers {
		c.byKey[strings.ToLower(strings.TrimSpace(issuer))] = names
	}
}

// CatalogNames returns the product names for issuer, matched
// case-insensitively, or nil when the issuer is unknown. The result must not
// be modified.
func (c *Catalog) CatalogNames(issuer string) []string {
	return c.byKey[strings.ToLower(strings.TrimSpace(issuer))]
}
