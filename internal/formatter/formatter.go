// Package formatter renders run reports as text, markdown or JSON, to a
// single writer or as one file per case.
package formatter

import (
	"fmt"
	"io"
	"sort"

	"github.com/tordrt/schemausage/internal/report"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formatter renders a whole report
type Formatter interface {
	Format(r *report.Report) error
}

// caseFormatter renders one case; used for per-case files
type caseFormatter interface {
	FormatCase(c *report.Case) error
}

// New returns the formatter for format writing to w
func New(format string, w io.Writer, plot bool) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w, plot), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("invalid format: %s (must be 'text', 'markdown' or 'json')", format)
	}
}

func newCaseFormatter(format string, w io.Writer, plot bool) caseFormatter {
	switch format {
	case FormatMarkdown:
		return NewMarkdownFormatter(w)
	case FormatJSON:
		return NewJSONFormatter(w)
	default:
		return NewTextFormatter(w, plot)
	}
}

func caseTitle(c *report.Case) string {
	if c.Name == "" || c.Name == c.Source {
		return c.Source
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Source)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
