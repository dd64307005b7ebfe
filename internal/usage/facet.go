package usage

import (
	"encoding/json"
	"strings"

	"github.com/tordrt/schemausage/internal/schema"
)

// reference is one inbound or outbound foreign key named in a facet source path
type reference struct {
	name  schema.ConstraintName
	raw   string
	valid bool
}

// node identifies the reference in the invalid facet breakdown
func (r reference) node() string {
	if r.valid {
		return r.name.String()
	}
	return r.raw
}

// parseFacetReferences extracts the foreign key references of a facet filter.
// It reports false only when the filter is not valid JSON; an empty filter
// has no references.
func parseFacetReferences(facet string) ([]reference, bool) {
	if strings.TrimSpace(facet) == "" {
		return nil, true
	}

	var doc any
	if err := json.Unmarshal([]byte(facet), &doc); err != nil {
		return nil, false
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, true
	}
	clauses, ok := obj["and"].([]any)
	if !ok {
		return nil, true
	}

	var refs []reference
	for _, c := range clauses {
		clause, ok := c.(map[string]any)
		if !ok {
			continue
		}
		source, ok := clause["source"].([]any)
		if !ok {
			continue
		}
		for _, n := range source {
			node, ok := n.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := node["inbound"]; ok {
				refs = append(refs, newReference(v))
			} else if v, ok := node["outbound"]; ok {
				refs = append(refs, newReference(v))
			}
		}
	}
	return refs, true
}

func newReference(v any) reference {
	if pair, ok := v.([]any); ok && len(pair) == 2 {
		s, sok := pair[0].(string)
		n, nok := pair[1].(string)
		if sok && nok {
			return reference{name: schema.ConstraintName{s, n}, valid: true}
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return reference{raw: "?"}
	}
	return reference{raw: string(raw)}
}
