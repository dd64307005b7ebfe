package usage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tordrt/schemausage/internal/apperrors"
)

// Column names of the request log
const (
	ColumnTable = "c_table"
	ColumnFacet = "c_facet"
)

// AnalyzeFile tallies the request log at path
func (a *Analyzer) AnalyzeFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	return a.Analyze(f, path)
}

// Analyze tallies a CSV request log read from r. The first record is the header.
func (a *Analyzer) Analyze(r io.Reader, log string) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read log header: %w", err)
	}

	tableIdx, facetIdx := -1, -1
	for i, name := range header {
		switch name {
		case ColumnTable:
			tableIdx = i
		case ColumnFacet:
			facetIdx = i
		}
	}
	if tableIdx < 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingColumn, ColumnTable)
	}
	if facetIdx < 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingColumn, ColumnFacet)
	}

	res := newResult(log)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read log record %d: %w", res.Rows+1, err)
		}
		a.add(res, Row{
			Table: field(record, tableIdx),
			Facet: field(record, facetIdx),
		})
	}

	a.finish(res)
	return res, nil
}

func field(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}
