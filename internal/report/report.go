// Package report assembles the per-case results of a run into one structure
// that formatters can render.
package report

import (
	"sort"

	"github.com/tordrt/schemausage/internal/apperrors"
	"github.com/tordrt/schemausage/internal/loader"
	"github.com/tordrt/schemausage/internal/rowcount"
	"github.com/tordrt/schemausage/internal/stats"
	"github.com/tordrt/schemausage/internal/usage"
)

// Histogram labels
const (
	LabelForeignKeys = "foreign keys"
	LabelAnnotations = "annotations"
	LabelColumns     = "columns"
)

// Report is the result of a whole run
type Report struct {
	Cases []*Case `json:"cases"`
}

// Case is the result of one schema case
type Case struct {
	Name   string `json:"name"`
	Source string `json:"source"`

	Tables        []string `json:"tables"`
	IgnoredTables []string `json:"ignored_tables"`

	ForeignKeys stats.Summary `json:"foreign_keys"`
	Annotations stats.Summary `json:"annotations"`
	Columns     stats.Summary `json:"columns"`

	MostUsedAnnotations     []loader.NameCount            `json:"most_used_annotations"`
	InvalidAnnotationTables []loader.NameCount            `json:"invalid_annotation_tables"`
	InvalidAnnotations      []apperrors.InvalidAnnotation `json:"invalid_annotations,omitempty"`
	OnlyInvalidTables       []string                      `json:"only_invalid_tables"`

	Usage     []*usage.Result  `json:"usage,omitempty"`
	RowCounts *rowcount.Result `json:"row_counts,omitempty"`
	// RowCountError is set when the row-count batch failed
	RowCountError string `json:"row_count_error,omitempty"`
}

// NewCase builds the catalog part of a case report from a load result
func NewCase(name, source string, load *loader.Result) *Case {
	c := &Case{
		Name:          name,
		Source:        source,
		Tables:        load.Tables,
		IgnoredTables: load.Ignored,

		ForeignKeys: stats.Summarize(LabelForeignKeys, load.ForeignKeyCounts, load.Tables),
		Annotations: stats.Summarize(LabelAnnotations, load.AnnotationCounts, load.Tables),
		Columns:     stats.Summarize(LabelColumns, load.ColumnCounts, load.Tables),

		MostUsedAnnotations: load.MostUsedAnnotations(),
		InvalidAnnotations:  load.InvalidAnnotations,
		OnlyInvalidTables:   load.TablesWithOnlyInvalidAnnotations(),
	}

	for id, n := range load.InvalidAnnotationCounts {
		c.InvalidAnnotationTables = append(c.InvalidAnnotationTables, loader.NameCount{Name: id, Count: n})
	}
	sort.Slice(c.InvalidAnnotationTables, func(i, j int) bool {
		a, b := c.InvalidAnnotationTables[i], c.InvalidAnnotationTables[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})

	return c
}

// Summaries returns the three histograms in report order
func (c *Case) Summaries() []stats.Summary {
	return []stats.Summary{c.ForeignKeys, c.Annotations, c.Columns}
}
