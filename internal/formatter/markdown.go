package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemausage/internal/report"
	"github.com/tordrt/schemausage/internal/rowcount"
	"github.com/tordrt/schemausage/internal/stats"
	"github.com/tordrt/schemausage/internal/usage"
)

// MarkdownFormatter formats a report as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report in markdown format
func (f *MarkdownFormatter) Format(r *report.Report) error {
	for i, c := range r.Cases {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer)
		}
		if err := f.FormatCase(c); err != nil {
			return err
		}
	}
	return nil
}

// FormatCase writes a single case as a level-two section
func (f *MarkdownFormatter) FormatCase(c *report.Case) error {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", caseTitle(c))
	_, _ = fmt.Fprintf(f.writer, "- Tables: %d\n", len(c.Tables))
	_, _ = fmt.Fprintf(f.writer, "- Ignored tables: %d\n\n", len(c.IgnoredTables))

	f.formatSummaries(c.Summaries())
	f.formatAnnotations(c)

	for _, u := range c.Usage {
		f.formatUsage(u)
	}

	if c.RowCounts != nil {
		f.formatRowCounts(c.RowCounts)
	}
	if c.RowCountError != "" {
		_, _ = fmt.Fprintf(f.writer, "### Row counts\n\nFailed: %s\n\n", c.RowCountError)
	}
	return nil
}

func (f *MarkdownFormatter) formatSummaries(summaries []stats.Summary) {
	_, _ = fmt.Fprintf(f.writer, "### Distributions\n\n")
	_, _ = fmt.Fprintf(f.writer, "| Count | Tables with any | Median | 95%% | Max | Tables at max |\n")
	_, _ = fmt.Fprintf(f.writer, "|-------|-----------------|--------|-----|-----|---------------|\n")
	for _, s := range summaries {
		if s.Empty() {
			_, _ = fmt.Fprintf(f.writer, "| %s | 0 | - | - | - | - |\n", s.Label)
			continue
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %d | %d | %d | %d | %s |\n",
			s.Label, s.NonZero, s.Median, s.P95, s.Max, escapeCell(strings.Join(s.MaxTables, ", ")))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatAnnotations(c *report.Case) {
	if len(c.MostUsedAnnotations) > 0 {
		_, _ = fmt.Fprintf(f.writer, "### Most used annotations\n\n")
		_, _ = fmt.Fprintf(f.writer, "| Annotation | Tables |\n")
		_, _ = fmt.Fprintf(f.writer, "|------------|--------|\n")
		for _, nc := range c.MostUsedAnnotations {
			_, _ = fmt.Fprintf(f.writer, "| `%s` | %d |\n", nc.Name, nc.Count)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(c.InvalidAnnotationTables) > 0 {
		_, _ = fmt.Fprintf(f.writer, "### Invalid annotations\n\n")
		for _, nc := range c.InvalidAnnotationTables {
			only := ""
			if contains(c.OnlyInvalidTables, nc.Name) {
				only = " (no valid annotations)"
			}
			_, _ = fmt.Fprintf(f.writer, "- %s: %d%s\n", nc.Name, nc.Count, only)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *MarkdownFormatter) formatUsage(u *usage.Result) {
	_, _ = fmt.Fprintf(f.writer, "### Usage: %s\n\n", u.Log)
	_, _ = fmt.Fprintf(f.writer, "- Requests: %d\n", u.Rows)
	_, _ = fmt.Fprintf(f.writer, "- Requests with invalid end table: %d\n", u.InvalidTableRows)
	_, _ = fmt.Fprintf(f.writer, "- Used end tables: %d\n", u.EndTableCount())
	_, _ = fmt.Fprintf(f.writer, "- Used tables: %d\n", len(u.UsedTables))
	_, _ = fmt.Fprintf(f.writer, "- Facet nodes: %d (invalid: %d)\n", u.FacetNodes, u.InvalidFacetNodes)
	_, _ = fmt.Fprintf(f.writer, "- Malformed facets: %d\n", u.MalformedFacetRows)
	_, _ = fmt.Fprintf(f.writer, "- Unused tables: %d\n\n", len(u.UnusedTables))

	if used := u.SortedUsedTables(); len(used) > 0 {
		_, _ = fmt.Fprintf(f.writer, "#### Used tables\n\n")
		_, _ = fmt.Fprintf(f.writer, "| Table | Requests |\n")
		_, _ = fmt.Fprintf(f.writer, "|-------|----------|\n")
		for _, nc := range used {
			_, _ = fmt.Fprintf(f.writer, "| %s | %d |\n", nc.Name, nc.Count)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(u.InvalidFacetBreakdown) > 0 {
		_, _ = fmt.Fprintf(f.writer, "#### Invalid facet nodes\n\n")
		for _, node := range sortedKeys(u.InvalidFacetBreakdown) {
			_, _ = fmt.Fprintf(f.writer, "- `%s`: %d\n", node, u.InvalidFacetBreakdown[node])
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *MarkdownFormatter) formatRowCounts(rc *rowcount.Result) {
	_, _ = fmt.Fprintf(f.writer, "### Row counts\n\n")
	_, _ = fmt.Fprintf(f.writer, "Total: %d\n\n", rc.Total)
	_, _ = fmt.Fprintf(f.writer, "| Table | Rows |\n")
	_, _ = fmt.Fprintf(f.writer, "|-------|------|\n")
	for _, tc := range rc.Sorted {
		_, _ = fmt.Fprintf(f.writer, "| %s | %d |\n", tc.Table, tc.Count)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
