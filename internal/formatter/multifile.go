package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/schemausage/internal/report"
)

// MultiFileFormatter writes a report to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text", "markdown" or "json"
	Plot         bool
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string, plot bool) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
		Plot:         plot,
	}
}

// Format writes an overview file plus one file per case
func (f *MultiFileFormatter) Format(r *report.Report) error {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write overview file
	if err := f.writeOverview(r); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	// Write per-case files
	for _, c := range r.Cases {
		if err := f.writeCaseFile(c); err != nil {
			return fmt.Errorf("failed to write case file for %s: %w", c.Name, err)
		}
	}

	return nil
}

// writeOverview writes the overview file
func (f *MultiFileFormatter) writeOverview(r *report.Report) error {
	filename := filepath.Join(f.OutputDir, "_overview"+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	switch f.OutputFormat {
	case FormatMarkdown:
		_, _ = fmt.Fprintf(file, "# Schema Usage Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each case has a corresponding file: `<case_name>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(file, "## Cases\n\n")
		for _, c := range r.Cases {
			_, _ = fmt.Fprintf(file, "- **%s** (%s)%s\n", c.Name, c.Source, overviewDetails(c))
		}
	case FormatJSON:
		return NewJSONFormatter(file).encode(overview(r))
	default:
		_, _ = fmt.Fprintf(file, "SCHEMA USAGE OVERVIEW\n")
		_, _ = fmt.Fprintf(file, "Each case has a file: <case_name>%s\n\n", f.getFileExtension())
		for _, c := range r.Cases {
			_, _ = fmt.Fprintf(file, "%s (%s)%s\n", c.Name, c.Source, overviewDetails(c))
		}
	}

	return nil
}

// overviewEntry is one line of the JSON overview
type overviewEntry struct {
	Name    string `json:"name"`
	File    string `json:"file"`
	Source  string `json:"source"`
	Tables  int    `json:"tables"`
	Ignored int    `json:"ignored"`
	Logs    int    `json:"logs"`
}

func overview(r *report.Report) []overviewEntry {
	entries := make([]overviewEntry, 0, len(r.Cases))
	for _, c := range r.Cases {
		entries = append(entries, overviewEntry{
			Name:    c.Name,
			File:    CaseFileName(c.Name) + ".json",
			Source:  c.Source,
			Tables:  len(c.Tables),
			Ignored: len(c.IgnoredTables),
			Logs:    len(c.Usage),
		})
	}
	return entries
}

func overviewDetails(c *report.Case) string {
	details := fmt.Sprintf(": %d tables, %d ignored", len(c.Tables), len(c.IgnoredTables))
	if len(c.Usage) > 0 {
		details += fmt.Sprintf(", %d logs", len(c.Usage))
	}
	if c.RowCounts != nil {
		details += fmt.Sprintf(", %d rows", c.RowCounts.Total)
	}
	if c.RowCountError != "" {
		details += ", row counts failed"
	}
	return details
}

// writeCaseFile writes a single case to its own file
func (f *MultiFileFormatter) writeCaseFile(c *report.Case) error {
	filename := filepath.Join(f.OutputDir, CaseFileName(c.Name)+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return newCaseFormatter(f.OutputFormat, file, f.Plot).FormatCase(c)
}

// CaseFileName turns a case name into a file name without extension
func CaseFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "case"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

func (f *MultiFileFormatter) getFileExtension() string {
	switch f.OutputFormat {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}
