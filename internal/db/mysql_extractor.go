package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/schemausage/internal/schema"
)

// MySQLExtractor handles catalog extraction from MySQL.
// The MySQL database name is used as the catalog schema name.
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL catalog extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractCatalog extracts the catalog for specified tables
// If tables is empty, extracts all tables in the database
func (e *MySQLExtractor) ExtractCatalog(ctx context.Context, tables []string) (*schema.Catalog, error) {
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
func (e *MySQLExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]tableRef, error) {
	if len(requestedTables) > 0 {
		return parseTableRefs(requestedTables, e.schemaName), nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []tableRef
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableRef{schema: e.schemaName, name: tableName})
	}

	return tables, rows.Err()
}

// extractTable extracts all information for a single table
func (e *MySQLExtractor) extractTable(ctx context.Context, ref tableRef) (*schema.Table, error) {
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

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, ref tableRef) ([]schema.Column, error) {
	query := `
		SELECT column_name, column_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type.Typename, &nullable, &defaultVal); err != nil {
			return nil, err
		}

		col.Nullok = nullable == "YES"
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		col.Annotations = schema.Annotations{}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// extractKeys extracts primary key and unique constraints
func (e *MySQLExtractor) extractKeys(ctx context.Context, ref tableRef) ([]schema.Key, error) {
	query := `
		SELECT kcu.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_schema = kcu.constraint_schema
			AND tc.constraint_name = kcu.constraint_name
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []schema.Key
	for rows.Next() {
		var conName, column string
		if err := rows.Scan(&conName, &column); err != nil {
			return nil, err
		}
		name := schema.ConstraintName{ref.schema, conName}
		if n := len(keys); n == 0 || keys[n-1].Names[0] != name {
			keys = append(keys, schema.Key{
				Names:       []schema.ConstraintName{name},
				Annotations: schema.Annotations{},
			})
		}
		keys[len(keys)-1].UniqueColumns = append(keys[len(keys)-1].UniqueColumns, column)
	}

	return keys, rows.Err()
}

// extractForeignKeys extracts foreign key constraints with their column pairs
func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, ref tableRef) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var b foreignKeyBuilder
	for rows.Next() {
		var conName, column, refSchema, refTable, refColumn string
		if err := rows.Scan(&conName, &column, &refSchema, &refTable, &refColumn); err != nil {
			return nil, err
		}
		b.add(schema.ConstraintName{ref.schema, conName},
			schema.ColumnRef{SchemaName: ref.schema, TableName: ref.name, ColumnName: column},
			schema.ColumnRef{SchemaName: refSchema, TableName: refTable, ColumnName: refColumn})
	}

	return b.keys, rows.Err()
}
