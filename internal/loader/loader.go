// Package loader turns a catalog document into per-table statistics and the
// constraint index used to resolve facet references in request logs.
package loader

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tordrt/schemausage/internal/annotation"
	"github.com/tordrt/schemausage/internal/apperrors"
	"github.com/tordrt/schemausage/internal/schema"
)

// Result holds everything derived from one catalog load.
// The per-table slices are aligned by index with Tables.
type Result struct {
	Tables  []string
	Ignored []string

	AnnotationUsage  annotation.Tally
	AnnotationCounts []int
	ColumnCounts     []int
	ForeignKeyCounts []int

	InvalidAnnotationCounts map[string]int
	InvalidAnnotations      []apperrors.InvalidAnnotation

	Constraints ConstraintIndex

	included map[string]struct{}
}

// Includes reports whether id is one of the included tables
func (r *Result) Includes(id string) bool {
	_, ok := r.included[id]
	return ok
}

// NameCount pairs a name with a count
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MostUsedAnnotations returns the annotation tally sorted by count descending, then name
func (r *Result) MostUsedAnnotations() []NameCount {
	out := make([]NameCount, 0, len(r.AnnotationUsage))
	for name, n := range r.AnnotationUsage {
		out = append(out, NameCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TablesWithOnlyInvalidAnnotations lists tables that have invalid annotations and no counted ones
func (r *Result) TablesWithOnlyInvalidAnnotations() []string {
	var out []string
	for i, id := range r.Tables {
		if r.InvalidAnnotationCounts[id] > 0 && r.AnnotationCounts[i] == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Loader scans catalogs
type Loader struct {
	opts   Options
	logger *zap.Logger
}

// New creates a loader
func New(opts Options, logger *zap.Logger) *Loader {
	if opts.ForeignKeyAnnotations == "" {
		opts.ForeignKeyAnnotations = FKAnnotationsLastKey
	}
	return &Loader{
		opts:   opts,
		logger: logger.Named("loader"),
	}
}

// scan carries the state of one Load call
type scan struct {
	*Loader
	result  *Result
	lastKey *schema.Key
	system  map[string]struct{}
}

// Load scans every table of the catalog in document order
func (l *Loader) Load(c *schema.Catalog) *Result {
	s := &scan{
		Loader: l,
		result: &Result{
			AnnotationUsage:         annotation.Tally{},
			InvalidAnnotationCounts: map[string]int{},
			Constraints:             ConstraintIndex{},
			included:                map[string]struct{}{},
		},
		system: make(map[string]struct{}, len(l.opts.SystemColumns)),
	}
	for _, name := range l.opts.SystemColumns {
		s.system[name] = struct{}{}
	}

	for _, entry := range c.Tables() {
		id := entry.ID()
		if l.opts.Exclusion.Excludes(entry.Schema, entry.Name) {
			l.logger.Debug("Ignoring table", zap.String("table", id))
			s.result.Ignored = append(s.result.Ignored, id)
			continue
		}
		s.table(id, entry.Table)
	}

	l.logger.Debug("Loaded catalog",
		zap.Int("tables", len(s.result.Tables)),
		zap.Int("ignored", len(s.result.Ignored)),
		zap.Int("constraints", s.result.Constraints.Len()))

	return s.result
}

func (s *scan) table(id string, t *schema.Table) {
	r := s.result
	r.Tables = append(r.Tables, id)
	r.included[id] = struct{}{}

	counter := annotation.NewCounter(s.opts.Whitelist, r.AnnotationUsage)

	s.annotations(id, counter, annotation.ScopeTable, t.Annotations, t.Annotations)

	for _, col := range t.Columns {
		if _, ok := s.system[col.Name]; ok {
			continue
		}
		s.annotations(id, counter, annotation.ScopeColumn, col.Annotations, col.Annotations)
	}

	for i := range t.Keys {
		s.lastKey = &t.Keys[i]
		s.annotations(id, counter, annotation.ScopeKey, t.Keys[i].Annotations, t.Keys[i].Annotations)
	}

	for _, fk := range t.ForeignKeys {
		switch s.opts.ForeignKeyAnnotations {
		case FKAnnotationsOwn:
			s.annotations(id, counter, annotation.ScopeForeignKey, fk.Annotations, fk.Annotations)
		default:
			if s.lastKey == nil {
				s.logger.Debug("No key scanned yet, skipping foreign key annotations", zap.String("table", id))
				continue
			}
			s.annotations(id, counter, annotation.ScopeForeignKey, s.lastKey.Annotations, fk.Annotations)
		}
	}

	r.AnnotationCounts = append(r.AnnotationCounts, counter.Distinct())
	r.ColumnCounts = append(r.ColumnCounts, len(t.Columns))
	r.ForeignKeyCounts = append(r.ForeignKeyCounts, len(t.ForeignKeys))

	for _, fk := range t.ForeignKeys {
		s.constraint(id, fk)
	}
}

// annotations offers every name of names to the counter, reading each value from values
func (s *scan) annotations(id string, counter *annotation.Counter, scope annotation.Scope, names, values schema.Annotations) {
	keys := make([]string, 0, len(names))
	for name := range names {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	for _, name := range keys {
		outcome := counter.Add(scope, name, values[name])
		if !outcome.Invalid() {
			continue
		}
		s.result.InvalidAnnotationCounts[id]++
		s.result.InvalidAnnotations = append(s.result.InvalidAnnotations, apperrors.InvalidAnnotation{
			Table:  id,
			Scope:  string(scope),
			Name:   name,
			Reason: outcome.String(),
		})
		s.logger.Debug("Invalid annotation",
			zap.String("table", id),
			zap.String("scope", string(scope)),
			zap.String("name", name),
			zap.Stringer("reason", outcome))
	}
}

// constraint indexes the first name and first column pair of a foreign key
func (s *scan) constraint(id string, fk schema.ForeignKey) {
	if len(fk.Names) == 0 || len(fk.ForeignKeyColumns) == 0 || len(fk.ReferencedColumns) == 0 {
		s.logger.Debug("Skipping incomplete foreign key", zap.String("table", id))
		return
	}

	name := fk.Names[0]
	s.result.Constraints.Put(name.Schema(), name.Name(), Endpoints{
		Source:     fk.ForeignKeyColumns[0].TableID(),
		Referenced: fk.ReferencedColumns[0].TableID(),
	})
}
