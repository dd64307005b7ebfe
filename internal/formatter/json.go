package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tordrt/schemausage/internal/report"
)

// JSONFormatter writes the report as indented JSON
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format writes the report
func (f *JSONFormatter) Format(r *report.Report) error {
	return f.encode(r)
}

// FormatCase writes a single case
func (f *JSONFormatter) FormatCase(c *report.Case) error {
	return f.encode(c)
}

func (f *JSONFormatter) encode(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
