package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/schemausage/internal/schema"
)

// SQLiteExtractor handles catalog extraction from SQLite.
// Every table is filed under the main schema and constraint names are
// derived from the table and column names, since SQLite does not keep them.
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite catalog extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// ExtractCatalog extracts the catalog for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractCatalog(ctx context.Context, tables []string) (*schema.Catalog, error) {
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
func (e *SQLiteExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]tableRef, error) {
	if len(requestedTables) > 0 {
		refs := parseTableRefs(requestedTables, SQLiteSchema)
		for i := range refs {
			refs[i].schema = SQLiteSchema
		}
		return refs, nil
	}

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []tableRef
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableRef{schema: SQLiteSchema, name: tableName})
	}

	return tableList, rows.Err()
}

// extractTable extracts all information for a single table
func (e *SQLiteExtractor) extractTable(ctx context.Context, ref tableRef) (*schema.Table, error) {
	table := newTable(ref)

	// Extract columns
	columns, pk, err := e.extractColumns(ctx, ref.name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	// Extract primary and unique keys
	keys, err := e.extractKeys(ctx, ref.name, pk)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	table.Keys = keys

	// Extract foreign keys
	fkeys, err := e.extractForeignKeys(ctx, ref.name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = fkeys

	return table, nil
}

// extractColumns extracts column information and the primary key columns in key order
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLite(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	pkPos := map[int]string{}

	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultVal sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, nil, err
		}

		col := schema.Column{
			Name:        name,
			Type:        schema.ColumnType{Typename: strings.ToLower(colType)},
			Nullok:      notNull == 0 && pk == 0,
			Annotations: schema.Annotations{},
		}
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		if pk > 0 {
			pkPos[pk] = name
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pk := make([]string, 0, len(pkPos))
	for i := 1; i <= len(pkPos); i++ {
		pk = append(pk, pkPos[i])
	}

	return columns, pk, nil
}

// extractKeys builds the primary key and one key per unique constraint
func (e *SQLiteExtractor) extractKeys(ctx context.Context, tableName string, pk []string) ([]schema.Key, error) {
	var keys []schema.Key
	if len(pk) > 0 {
		keys = append(keys, sqliteKey(tableName+"_pkey", pk))
	}

	query := fmt.Sprintf("PRAGMA index_list(%s)", quoteSQLite(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var unique []string
	for rows.Next() {
		var seq, isUnique, partial int
		var name, origin string

		if err := rows.Scan(&seq, &name, &isUnique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if isUnique == 1 && origin != "pk" {
			unique = append(unique, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(unique)
	for _, index := range unique {
		columns, err := e.indexColumns(ctx, index)
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			continue
		}

		name := index
		if strings.HasPrefix(name, "sqlite_autoindex") {
			name = tableName + "_" + strings.Join(columns, "_") + "_key"
		}
		keys = append(keys, sqliteKey(name, columns))
	}

	return keys, nil
}

func (e *SQLiteExtractor) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteSQLite(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

func sqliteKey(name string, columns []string) schema.Key {
	return schema.Key{
		UniqueColumns: columns,
		Names:         []schema.ConstraintName{{SQLiteSchema, name}},
		Annotations:   schema.Annotations{},
	}
}

type sqliteForeignKeyRow struct {
	id, seq     int
	targetTable string
	from        string
	to          sql.NullString
}

// extractForeignKeys extracts foreign key constraints, one per PRAGMA id
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteSQLite(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var fkRows []sqliteForeignKeyRow
	for rows.Next() {
		var r sqliteForeignKeyRow
		var onUpdate, onDelete, match string

		if err := rows.Scan(&r.id, &r.seq, &r.targetTable, &r.from, &r.to, &onUpdate, &onDelete, &match); err != nil {
			rows.Close()
			return nil, err
		}
		fkRows = append(fkRows, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(fkRows, func(i, j int) bool {
		if fkRows[i].id != fkRows[j].id {
			return fkRows[i].id < fkRows[j].id
		}
		return fkRows[i].seq < fkRows[j].seq
	})

	// columns referencing an implicit primary key have no target column name
	targetPK := map[string][]string{}

	var keys []schema.ForeignKey
	byID := map[int]int{}
	for _, r := range fkRows {
		to := r.to.String
		if !r.to.Valid || to == "" {
			pk, ok := targetPK[r.targetTable]
			if !ok {
				_, pk, err = e.extractColumns(ctx, r.targetTable)
				if err != nil {
					return nil, err
				}
				targetPK[r.targetTable] = pk
			}
			if r.seq < len(pk) {
				to = pk[r.seq]
			}
		}

		i, ok := byID[r.id]
		if !ok {
			i = len(keys)
			byID[r.id] = i
			keys = append(keys, schema.ForeignKey{Annotations: schema.Annotations{}})
		}
		keys[i].ForeignKeyColumns = append(keys[i].ForeignKeyColumns,
			schema.ColumnRef{SchemaName: SQLiteSchema, TableName: tableName, ColumnName: r.from})
		keys[i].ReferencedColumns = append(keys[i].ReferencedColumns,
			schema.ColumnRef{SchemaName: SQLiteSchema, TableName: r.targetTable, ColumnName: to})
	}

	for i := range keys {
		cols := make([]string, 0, len(keys[i].ForeignKeyColumns))
		for _, c := range keys[i].ForeignKeyColumns {
			cols = append(cols, c.ColumnName)
		}
		keys[i].Names = []schema.ConstraintName{{SQLiteSchema, tableName + "_" + strings.Join(cols, "_") + "_fkey"}}
	}

	return keys, nil
}
