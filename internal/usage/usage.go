// Package usage cross-references historical request logs with a loaded
// catalog to find which tables are reached, either as the end table of a
// request or through a foreign key named in a facet filter.
package usage

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tordrt/schemausage/internal/apperrors"
	"github.com/tordrt/schemausage/internal/loader"
	"github.com/tordrt/schemausage/internal/schema"
)

// Mapping renames tables and foreign keys that changed since the logs were captured
type Mapping struct {
	// Tables maps an old schema:table to its current id
	Tables map[string]string
	// ForeignKeys maps an old schema:constraint to its current name
	ForeignKeys map[string]schema.ConstraintName
}

// Row is one logged request
type Row struct {
	Table string
	Facet string
}

// Result is the usage tally of one log
type Result struct {
	Log  string `json:"log"`
	Rows int    `json:"rows"`

	UsedTables map[string]int `json:"used_tables"`
	EndTables  map[string]int `json:"end_tables"`

	InvalidTables    map[string]int `json:"invalid_tables"`
	InvalidTableRows int            `json:"invalid_table_rows"`

	FacetNodes            int            `json:"facet_nodes"`
	InvalidFacetNodes     int            `json:"invalid_facet_nodes"`
	InvalidFacetBreakdown map[string]int `json:"invalid_facet_breakdown"`
	MalformedFacetRows    int            `json:"malformed_facet_rows"`

	Unresolved   []apperrors.UnresolvedFacetReference `json:"unresolved,omitempty"`
	UnusedTables []string                             `json:"unused_tables"`
}

// EndTableCount returns the number of distinct end tables seen
func (r *Result) EndTableCount() int {
	return len(r.EndTables)
}

// SortedUsedTables returns the used tables ordered by count descending, then id
func (r *Result) SortedUsedTables() []loader.NameCount {
	out := make([]loader.NameCount, 0, len(r.UsedTables))
	for id, n := range r.UsedTables {
		out = append(out, loader.NameCount{Name: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func newResult(log string) *Result {
	return &Result{
		Log:                   log,
		UsedTables:            map[string]int{},
		EndTables:             map[string]int{},
		InvalidTables:         map[string]int{},
		InvalidFacetBreakdown: map[string]int{},
	}
}

// Analyzer resolves log rows against one loaded catalog
type Analyzer struct {
	catalog *loader.Result
	mapping Mapping
	logger  *zap.Logger
}

// NewAnalyzer creates an analyzer for the given catalog load
func NewAnalyzer(catalog *loader.Result, mapping Mapping, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		catalog: catalog,
		mapping: mapping,
		logger:  logger.Named("usage"),
	}
}

// AnalyzeRows tallies an in-memory sequence of rows
func (a *Analyzer) AnalyzeRows(log string, rows []Row) *Result {
	res := newResult(log)
	for _, row := range rows {
		a.add(res, row)
	}
	a.finish(res)
	return res
}

func (a *Analyzer) add(res *Result, row Row) {
	res.Rows++

	resolved := row.Table
	if mapped, ok := a.mapping.Tables[resolved]; ok {
		resolved = mapped
	}

	if !a.catalog.Includes(resolved) {
		res.InvalidTables[resolved]++
		res.InvalidTableRows++
		return
	}

	// tallied under the logged name, not the mapped one
	res.UsedTables[row.Table]++
	res.EndTables[row.Table]++

	refs, ok := parseFacetReferences(row.Facet)
	if !ok {
		res.MalformedFacetRows++
		return
	}

	for _, ref := range refs {
		res.FacetNodes++

		ep, ok := a.resolve(ref)
		if !ok {
			node := ref.node()
			res.InvalidFacetNodes++
			res.InvalidFacetBreakdown[node]++
			res.Unresolved = append(res.Unresolved, apperrors.UnresolvedFacetReference{Node: node, Row: res.Rows})
			a.logger.Warn("Unresolved facet reference",
				zap.String("log", res.Log),
				zap.Int("row", res.Rows),
				zap.String("node", node),
				zap.String("c_table", row.Table),
				zap.String("c_facet", row.Facet))
			continue
		}

		res.UsedTables[ep.Source]++
		res.UsedTables[ep.Referenced]++
	}
}

// resolve looks a reference up in the constraint index, falling back to the rename mapping
func (a *Analyzer) resolve(ref reference) (loader.Endpoints, bool) {
	if !ref.valid {
		return loader.Endpoints{}, false
	}
	if ep, ok := a.catalog.Constraints.Lookup(ref.name.Schema(), ref.name.Name()); ok {
		return ep, true
	}
	mapped, ok := a.mapping.ForeignKeys[ref.name.String()]
	if !ok {
		return loader.Endpoints{}, false
	}
	return a.catalog.Constraints.Lookup(mapped.Schema(), mapped.Name())
}

func (a *Analyzer) finish(res *Result) {
	for _, id := range a.catalog.Tables {
		if _, ok := res.UsedTables[id]; !ok {
			res.UnusedTables = append(res.UnusedTables, id)
		}
	}

	a.logger.Debug("Analyzed log",
		zap.String("log", res.Log),
		zap.Int("rows", res.Rows),
		zap.Int("invalid_table_rows", res.InvalidTableRows),
		zap.Int("facet_nodes", res.FacetNodes),
		zap.Int("invalid_facet_nodes", res.InvalidFacetNodes))
}
