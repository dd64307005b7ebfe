package db

import (
	"context"
	"fmt"

	"github.com/tordrt/schemausage/internal/schema"
)

const varcharType = "varchar"

// Extractor handles catalog extraction from PostgreSQL
type Extractor struct {
	client  *PostgresClient
	schemas []string
}

// NewExtractor creates a new catalog extractor.
// If schemas is empty, every schema except the system ones is read.
func NewExtractor(client *PostgresClient, schemas []string) *Extractor {
	return &Extractor{
		client:  client,
		schemas: schemas,
	}
}

// ExtractCatalog extracts the catalog for the specified tables.
// Tables are given as schema:table, or as a bare name in the public schema.
// If tables is empty, extracts all tables of the selected schemas.
func (e *Extractor) ExtractCatalog(ctx context.Context, tables []string) (*schema.Catalog, error) {
	catalog := schema.NewCatalog()

	refs, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	for _, ref := range refs {
		table, err := e.extractTable(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", ref, err)
		}
		catalog.AddTable(ref.schema, table)
	}

	return catalog, nil
}

// getTableNames returns the list of tables to extract
func (e *Extractor) getTableNames(ctx context.Context, requestedTables []string) ([]tableRef, error) {
	if len(requestedTables) > 0 {
		return parseTableRefs(requestedTables, "public"), nil
	}

	query := `
		SELECT table_schema::text, table_name::text
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
			AND table_schema NOT IN ('pg_catalog', 'information_schema')
			AND (cardinality($1::text[]) = 0 OR table_schema = ANY($1::text[]))
		ORDER BY table_schema, table_name
	`

	schemas := e.schemas
	if schemas == nil {
		schemas = []string{}
	}

	rows, err := e.client.GetConnection().Query(ctx, query, schemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []tableRef
	for rows.Next() {
		var ref tableRef
		if err := rows.Scan(&ref.schema, &ref.name); err != nil {
			return nil, err
		}
		tables = append(tables, ref)
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *Extractor) extractTable(ctx context.Context, ref tableRef) (*schema.Table, error) {
	table := newTable(ref)

	// Extract columns
	columns, err := e.extractColumns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	// Extract primary and unique keys
	keys, err := e.extractKeys(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	table.Keys = keys

	// Extract foreign keys
	fkeys, err := e.extractForeignKeys(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = fkeys

	return table, nil
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[])
		if len(udtName) > 0 && udtName[0] == '_' {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

// extractColumns extracts column information for a table
func (e *Extractor) extractColumns(ctx context.Context, ref tableRef) ([]schema.Column, error) {
	query := `
		SELECT
			column_name::text,
			data_type::text,
			is_nullable::text,
			column_default::text,
			udt_name::text,
			character_maximum_length::int
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable, dataType, udtName string
		var charMaxLength *int

		if err := rows.Scan(&col.Name, &dataType, &nullable, &col.Default, &udtName, &charMaxLength); err != nil {
			return nil, err
		}

		col.Nullok = nullable == "YES"
		col.Type.Typename = normalizePostgresType(dataType, udtName, charMaxLength)
		col.Annotations = schema.Annotations{}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// extractKeys extracts primary key and unique constraints
func (e *Extractor) extractKeys(ctx context.Context, ref tableRef) ([]schema.Key, error) {
	query := `
		SELECT
			n.nspname::text,
			con.conname::text,
			array_agg(a.attname::text ORDER BY k.ord)
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace tn ON tn.oid = t.relnamespace
		JOIN pg_namespace n ON n.oid = con.connamespace
		CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		WHERE con.contype IN ('p', 'u')
			AND tn.nspname = $1
			AND t.relname = $2
		GROUP BY n.nspname, con.conname
		ORDER BY con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []schema.Key
	for rows.Next() {
		var nspName, conName string
		var cols []string
		if err := rows.Scan(&nspName, &conName, &cols); err != nil {
			return nil, err
		}
		keys = append(keys, schema.Key{
			UniqueColumns: cols,
			Names:         []schema.ConstraintName{{nspName, conName}},
			Annotations:   schema.Annotations{},
		})
	}

	return keys, rows.Err()
}

// extractForeignKeys extracts foreign key constraints with their column pairs in declaration order
func (e *Extractor) extractForeignKeys(ctx context.Context, ref tableRef) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			n.nspname::text,
			con.conname::text,
			a.attname::text,
			rn.nspname::text,
			r.relname::text,
			ra.attname::text
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace tn ON tn.oid = t.relnamespace
		JOIN pg_namespace n ON n.oid = con.connamespace
		JOIN pg_class r ON r.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = r.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
		WHERE con.contype = 'f'
			AND tn.nspname = $1
			AND t.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := e.client.GetConnection().Query(ctx, query, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var b foreignKeyBuilder
	for rows.Next() {
		var nspName, conName, column, refSchema, refTable, refColumn string
		if err := rows.Scan(&nspName, &conName, &column, &refSchema, &refTable, &refColumn); err != nil {
			return nil, err
		}
		b.add(schema.ConstraintName{nspName, conName},
			schema.ColumnRef{SchemaName: ref.schema, TableName: ref.name, ColumnName: column},
			schema.ColumnRef{SchemaName: refSchema, TableName: refTable, ColumnName: refColumn})
	}

	return b.keys, rows.Err()
}
