package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tordrt/schemausage/internal/report"
	"github.com/tordrt/schemausage/internal/rowcount"
	"github.com/tordrt/schemausage/internal/stats"
	"github.com/tordrt/schemausage/internal/usage"
)

const maxBarWidth = 40

// TextFormatter formats a report as compact terminal text
type TextFormatter struct {
	writer io.Writer
	plot   bool

	caseStyle  lipgloss.Style
	titleStyle lipgloss.Style
	dimStyle   lipgloss.Style
	warnStyle  lipgloss.Style
	barStyle   lipgloss.Style
}

// NewTextFormatter creates a new text formatter.
// Styles only produce escape codes when w is a color terminal.
func NewTextFormatter(w io.Writer, plot bool) *TextFormatter {
	r := lipgloss.NewRenderer(w)
	return &TextFormatter{
		writer:     w,
		plot:       plot,
		caseStyle:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		titleStyle: r.NewStyle().Bold(true),
		dimStyle:   r.NewStyle().Foreground(lipgloss.Color("241")),
		warnStyle:  r.NewStyle().Foreground(lipgloss.Color("214")),
		barStyle:   r.NewStyle().Foreground(lipgloss.Color("205")),
	}
}

// Format writes every case of the report
func (f *TextFormatter) Format(r *report.Report) error {
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

// FormatCase writes a single case
func (f *TextFormatter) FormatCase(c *report.Case) error {
	banner := strings.Repeat("=", 20)
	_, _ = fmt.Fprintln(f.writer, f.caseStyle.Render(fmt.Sprintf("%s for %s %s", banner, caseTitle(c), banner)))
	_, _ = fmt.Fprintf(f.writer, "# all tables: %d, # ignored tables: %d\n", len(c.Tables), len(c.IgnoredTables))

	for _, s := range c.Summaries() {
		_, _ = fmt.Fprintln(f.writer)
		f.formatSummary(s)
	}

	f.formatAnnotations(c)

	for _, u := range c.Usage {
		_, _ = fmt.Fprintln(f.writer)
		f.formatUsage(u)
	}

	if c.RowCounts != nil {
		_, _ = fmt.Fprintln(f.writer)
		f.formatRowCounts(c.RowCounts)
	}
	if c.RowCountError != "" {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintf(f.writer, "row counts failed: %s\n", f.warnStyle.Render(c.RowCountError))
	}
	return nil
}

func (f *TextFormatter) formatSummary(s stats.Summary) {
	_, _ = fmt.Fprintln(f.writer, f.titleStyle.Render(s.Label+" details:"))
	_, _ = fmt.Fprintf(f.writer, "tables with any: %d\n", s.NonZero)
	if s.Empty() {
		return
	}
	_, _ = fmt.Fprintf(f.writer, "median: %d, 95%%: %d\n", s.Median, s.P95)
	_, _ = fmt.Fprintf(f.writer, "max: %d, tables at max: %s\n", s.Max, strings.Join(s.MaxTables, ", "))

	if f.plot {
		f.formatHistogram(s.Bins)
	}
}

// formatHistogram draws one bar per distinct value, scaled to the tallest bar
func (f *TextFormatter) formatHistogram(bins []stats.Bin) {
	tallest, labelWidth := 0, 0
	for _, b := range bins {
		if b.Tables > tallest {
			tallest = b.Tables
		}
		if w := len(fmt.Sprint(b.Value)); w > labelWidth {
			labelWidth = w
		}
	}

	for _, b := range bins {
		width := b.Tables * maxBarWidth / tallest
		if width == 0 {
			width = 1
		}
		_, _ = fmt.Fprintf(f.writer, "  %*d | %s %d\n", labelWidth, b.Value, f.barStyle.Render(strings.Repeat("█", width)), b.Tables)
	}
}

func (f *TextFormatter) formatAnnotations(c *report.Case) {
	if len(c.MostUsedAnnotations) == 0 && len(c.InvalidAnnotationTables) == 0 {
		return
	}

	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, f.titleStyle.Render("most used annotations:"))
	for _, nc := range c.MostUsedAnnotations {
		_, _ = fmt.Fprintf(f.writer, "  %s: %d\n", nc.Name, nc.Count)
	}

	_, _ = fmt.Fprintf(f.writer, "tables with invalid annotations: %d\n", len(c.InvalidAnnotationTables))
	for _, nc := range c.InvalidAnnotationTables {
		_, _ = fmt.Fprintf(f.writer, "  %s: %d\n", f.warnStyle.Render(nc.Name), nc.Count)
	}
	if len(c.OnlyInvalidTables) > 0 {
		_, _ = fmt.Fprintf(f.writer, "tables with only invalid annotations: %s\n", strings.Join(c.OnlyInvalidTables, ", "))
	}
}

func (f *TextFormatter) formatUsage(u *usage.Result) {
	banner := strings.Repeat("-", 20)
	_, _ = fmt.Fprintln(f.writer, f.titleStyle.Render(fmt.Sprintf("%s for %s %s", banner, u.Log, banner)))
	_, _ = fmt.Fprintf(f.writer, "# requests: %d, # requests with invalid end table: %d, # used end tables: %d, # used tables: %d\n",
		u.Rows, u.InvalidTableRows, u.EndTableCount(), len(u.UsedTables))
	_, _ = fmt.Fprintf(f.writer, "# processed facet nodes: %d, # invalid facet nodes: %d, # malformed facets: %d\n",
		u.FacetNodes, u.InvalidFacetNodes, u.MalformedFacetRows)

	if len(u.InvalidTables) > 0 {
		_, _ = fmt.Fprintf(f.writer, "invalid tables: %s\n", f.warnStyle.Render(strings.Join(sortedKeys(u.InvalidTables), ", ")))
	}
	if len(u.InvalidFacetBreakdown) > 0 {
		_, _ = fmt.Fprintln(f.writer, "invalid facet nodes:")
		for _, node := range sortedKeys(u.InvalidFacetBreakdown) {
			_, _ = fmt.Fprintf(f.writer, "  %s: %d\n", f.warnStyle.Render(node), u.InvalidFacetBreakdown[node])
		}
	}
	_, _ = fmt.Fprintln(f.writer, "used tables:")
	for _, nc := range u.SortedUsedTables() {
		_, _ = fmt.Fprintf(f.writer, "  %s: %d\n", nc.Name, nc.Count)
	}
	_, _ = fmt.Fprintf(f.writer, "unused tables: %d\n", len(u.UnusedTables))
	for _, id := range u.UnusedTables {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.dimStyle.Render(id))
	}
}

func (f *TextFormatter) formatRowCounts(rc *rowcount.Result) {
	_, _ = fmt.Fprintln(f.writer, f.titleStyle.Render("row counts:"))
	_, _ = fmt.Fprintf(f.writer, "total count: %d\n", rc.Total)
	for _, tc := range rc.Sorted {
		_, _ = fmt.Fprintf(f.writer, "  %s: %d\n", tc.Table, tc.Count)
	}
}
