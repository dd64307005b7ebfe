// Package apperrors defines the error taxonomy shared by the analysis
// pipelines. SchemaParseError and RemoteQueryFailure are returned as errors
// and abort their unit of work. InvalidAnnotation and UnresolvedFacetReference
// are accumulated as records in results and never abort a run.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCatalog    = errors.New("catalog has no schemas")
	ErrMissingColumn   = errors.New("log is missing a required column")
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// SchemaParseError reports a catalog document that could not be read or decoded.
type SchemaParseError struct {
	Source string
	Err    error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("parsing catalog %s: %v", e.Source, e.Err)
}

func (e *SchemaParseError) Unwrap() error {
	return e.Err
}

// RemoteQueryFailure reports the first failed count query of a batch.
// The batch produces no partial result when this is returned.
type RemoteQueryFailure struct {
	Table      string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteQueryFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("counting rows of %s: status %d: %s", e.Table, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("counting rows of %s: %v", e.Table, e.Err)
}

func (e *RemoteQueryFailure) Unwrap() error {
	return e.Err
}

// InvalidAnnotation records one rejected annotation occurrence.
type InvalidAnnotation struct {
	Table  string `json:"table"`
	Scope  string `json:"scope"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e InvalidAnnotation) Error() string {
	return fmt.Sprintf("invalid %s annotation %q on %s: %s", e.Scope, e.Name, e.Table, e.Reason)
}

// UnresolvedFacetReference records a facet node whose foreign key could not
// be found in the constraint index or the rename mapping.
type UnresolvedFacetReference struct {
	Node string `json:"node"`
	Row  int    `json:"row"`
}

func (e UnresolvedFacetReference) Error() string {
	return fmt.Sprintf("row %d: unresolved facet reference %s", e.Row, e.Node)
}
