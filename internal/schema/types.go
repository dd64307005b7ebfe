package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Catalog represents a complete catalog schema document
type Catalog struct {
	Schemas *orderedmap.OrderedMap[string, *Schema] `json:"schemas"`
}

// Schema represents one named schema of the catalog
type Schema struct {
	SchemaName  string                                 `json:"schema_name,omitempty"`
	Tables      *orderedmap.OrderedMap[string, *Table] `json:"tables"`
	Annotations Annotations                            `json:"annotations,omitempty"`
}

// Annotations maps an annotation tag to its raw JSON value
type Annotations map[string]json.RawMessage

// Table represents a catalog table
type Table struct {
	TableName   string       `json:"table_name,omitempty"`
	SchemaName  string       `json:"schema_name,omitempty"`
	Annotations Annotations  `json:"annotations"`
	Columns     []Column     `json:"column_definitions"`
	Keys        []Key        `json:"keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Column represents a table column
type Column struct {
	Name        string      `json:"name"`
	Type        ColumnType  `json:"type"`
	Nullok      bool        `json:"nullok"`
	Default     *string     `json:"default,omitempty"`
	Annotations Annotations `json:"annotations"`
}

// ColumnType is the type descriptor of a column
type ColumnType struct {
	Typename string `json:"typename"`
}

// Key represents a unique key constraint
type Key struct {
	UniqueColumns []string         `json:"unique_columns"`
	Names         []ConstraintName `json:"names"`
	Annotations   Annotations      `json:"annotations"`
}

// ConstraintName is a (schema, name) pair naming a constraint
type ConstraintName [2]string

// Schema returns the naming schema of the constraint
func (n ConstraintName) Schema() string { return n[0] }

// Name returns the constraint name
func (n ConstraintName) Name() string { return n[1] }

// String renders the pair as schema:name
func (n ConstraintName) String() string { return n[0] + ":" + n[1] }

// ParseConstraintName reads a schema:name pair
func ParseConstraintName(s string) (ConstraintName, error) {
	schemaName, name, ok := strings.Cut(s, ":")
	if !ok || schemaName == "" || name == "" {
		return ConstraintName{}, fmt.Errorf("invalid constraint name %q (expected schema:name)", s)
	}
	return ConstraintName{schemaName, name}, nil
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Names             []ConstraintName `json:"names"`
	ForeignKeyColumns []ColumnRef      `json:"foreign_key_columns"`
	ReferencedColumns []ColumnRef      `json:"referenced_columns"`
	Annotations       Annotations      `json:"annotations"`
}

// ColumnRef identifies a column by schema, table and column name
type ColumnRef struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// TableID returns the schema-qualified table identifier
func (r ColumnRef) TableID() string {
	return TableID(r.SchemaName, r.TableName)
}

// TableEntry is a table together with the names it is filed under
type TableEntry struct {
	Schema string
	Name   string
	Table  *Table
}

// ID returns the schema-qualified table identifier
func (e TableEntry) ID() string {
	return TableID(e.Schema, e.Name)
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{Schemas: orderedmap.New[string, *Schema]()}
}

// AddTable files a table under the given schema, creating the schema if needed
func (c *Catalog) AddTable(schemaName string, t *Table) {
	if c.Schemas == nil {
		c.Schemas = orderedmap.New[string, *Schema]()
	}
	s, ok := c.Schemas.Get(schemaName)
	if !ok {
		s = &Schema{SchemaName: schemaName, Tables: orderedmap.New[string, *Table]()}
		c.Schemas.Set(schemaName, s)
	}
	if s.Tables == nil {
		s.Tables = orderedmap.New[string, *Table]()
	}
	s.Tables.Set(t.TableName, t)
}

// Tables lists every table of the catalog in document order
func (c *Catalog) Tables() []TableEntry {
	if c == nil || c.Schemas == nil {
		return nil
	}

	var entries []TableEntry
	for sp := c.Schemas.Oldest(); sp != nil; sp = sp.Next() {
		if sp.Value == nil || sp.Value.Tables == nil {
			continue
		}
		for tp := sp.Value.Tables.Oldest(); tp != nil; tp = tp.Next() {
			if tp.Value == nil {
				continue
			}
			entries = append(entries, TableEntry{Schema: sp.Key, Name: tp.Key, Table: tp.Value})
		}
	}
	return entries
}

// TableID joins a schema and table name into schema:table
func TableID(schemaName, tableName string) string {
	return schemaName + ":" + tableName
}

// SplitTableID splits schema:table at the first colon
func SplitTableID(id string) (schemaName, tableName string, ok bool) {
	return strings.Cut(id, ":")
}
