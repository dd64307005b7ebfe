// Package annotation holds the annotation whitelists and the per-table
// accumulator that decides which annotation occurrences are counted.
package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Scope is the catalog element an annotation is attached to
type Scope string

const (
	ScopeTable      Scope = "table"
	ScopeColumn     Scope = "column"
	ScopeKey        Scope = "key"
	ScopeForeignKey Scope = "fkey"
)

// Annotation tags known to the chaise client
const (
	TagDisplay            = "tag:misd.isi.edu,2015:display"
	TagTableAlternatives  = "tag:isrd.isi.edu,2016:table-alternatives"
	TagGenerated          = "tag:isrd.isi.edu,2016:generated"
	TagImmutable          = "tag:isrd.isi.edu,2016:immutable"
	TagNonDeletable       = "tag:isrd.isi.edu,2016:non-deletable"
	TagAppLinks           = "tag:isrd.isi.edu,2016:app-links"
	TagTableDisplay       = "tag:isrd.isi.edu,2016:table-display"
	TagVisibleColumns     = "tag:isrd.isi.edu,2016:visible-columns"
	TagVisibleForeignKeys = "tag:isrd.isi.edu,2016:visible-foreign-keys"
	TagExport2016         = "tag:isrd.isi.edu,2016:export"
	TagExport2019         = "tag:isrd.isi.edu,2019:export"
	TagCitation           = "tag:isrd.isi.edu,2018:citation"
	TagSourceDefinitions  = "tag:isrd.isi.edu,2019:source_definitions"
	TagColumnDisplay      = "tag:isrd.isi.edu,2016:column-display"
	TagRequired           = "tag:isrd.isi.edu,2018:required"
	TagAsset              = "tag:isrd.isi.edu,2017:asset"
	TagKeyDisplay         = "tag:isrd.isi.edu,2017:key-display"
	TagForeignKey         = "tag:isrd.isi.edu,2016:foreign-key"
)

// Set is a set of annotation tags
type Set map[string]struct{}

// NewSet builds a set from the given tags
func NewSet(tags ...string) Set {
	s := make(Set, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether tag is in the set
func (s Set) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Whitelist is the lookup table consulted by the validator
type Whitelist struct {
	Scopes       map[Scope]Set
	EmptyAllowed Set
}

// WhitelistVariant selects which table-scope whitelist is used
type WhitelistVariant string

const (
	// WhitelistHistorical reproduces the published analysis, where non-deletable
	// and app-links were fused into one entry and so never matched at table scope
	WhitelistHistorical WhitelistVariant = "historical"
	// WhitelistCorrected lists non-deletable and app-links as separate entries
	WhitelistCorrected WhitelistVariant = "corrected"
)

// ParseWhitelistVariant validates a flag value
func ParseWhitelistVariant(s string) (WhitelistVariant, error) {
	switch WhitelistVariant(s) {
	case "", WhitelistHistorical:
		return WhitelistHistorical, nil
	case WhitelistCorrected:
		return WhitelistCorrected, nil
	}
	return "", fmt.Errorf("invalid whitelist: %s (must be 'historical' or 'corrected')", s)
}

// WhitelistFor returns the whitelist of variant
func WhitelistFor(v WhitelistVariant) Whitelist {
	if v == WhitelistCorrected {
		return CorrectedWhitelist()
	}
	return HistoricalWhitelist()
}

// HistoricalWhitelist returns the whitelist the published numbers were computed
// with: the table scope carries the fused non-deletable/app-links entry instead
// of the two tags, so both are invalid on tables.
func HistoricalWhitelist() Whitelist {
	w := CorrectedWhitelist()
	table := w.Scopes[ScopeTable]
	delete(table, TagNonDeletable)
	delete(table, TagAppLinks)
	table[TagNonDeletable+TagAppLinks] = struct{}{}
	return w
}

// CorrectedWhitelist returns the whitelist used by the chaise client
func CorrectedWhitelist() Whitelist {
	return Whitelist{
		Scopes: map[Scope]Set{
			ScopeTable: NewSet(
				TagDisplay,
				TagTableAlternatives,
				TagGenerated,
				TagImmutable,
				TagNonDeletable,
				TagAppLinks,
				TagTableDisplay,
				TagVisibleColumns,
				TagVisibleForeignKeys,
				TagExport2016,
				TagExport2019,
				TagCitation,
				TagSourceDefinitions,
			),
			ScopeColumn: NewSet(
				TagDisplay,
				TagColumnDisplay,
				TagGenerated,
				TagImmutable,
				TagRequired,
				TagAsset,
			),
			ScopeKey: NewSet(
				TagDisplay,
				TagKeyDisplay,
			),
			ScopeForeignKey: NewSet(
				TagForeignKey,
			),
		},
		// presence alone is meaningful for these
		EmptyAllowed: NewSet(
			TagGenerated,
			TagImmutable,
			TagNonDeletable,
			TagRequired,
		),
	}
}

// Allows reports whether name is whitelisted for scope
func (w Whitelist) Allows(scope Scope, name string) bool {
	return w.Scopes[scope].Has(name)
}

// IsEmpty reports whether a raw annotation value counts as empty:
// null, false, 0, "", {} and [] are empty.
func IsEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return false
	}

	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case float64:
		return val == 0
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
