package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tordrt/schemausage/internal/apperrors"
)

// LoadFile reads a catalog document from a JSON file
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &apperrors.SchemaParseError{Source: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return Decode(f, path)
}

// Decode reads a catalog document from r. source names the document in errors.
func Decode(r io.Reader, source string) (*Catalog, error) {
	c := &Catalog{}
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, &apperrors.SchemaParseError{Source: source, Err: err}
	}
	if c.Schemas == nil || c.Schemas.Len() == 0 {
		return nil, &apperrors.SchemaParseError{Source: source, Err: apperrors.ErrEmptyCatalog}
	}
	return c, nil
}

// Encode writes the catalog to w as an indented JSON document
func (c *Catalog) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return nil
}

// WriteFile writes the catalog to path as an indented JSON document
func (c *Catalog) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	if err := c.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
