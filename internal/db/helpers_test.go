package db

import (
	"testing"

	"github.com/tordrt/schemausage/internal/schema"
)

// verifyTablesExist checks that all expected tables are present in the catalog
func verifyTablesExist(t *testing.T, c *schema.Catalog, expectedTables []string) {
	t.Helper()

	entries := c.Tables()
	if len(entries) != len(expectedTables) {
		t.Errorf("Expected %d tables, got %d", len(expectedTables), len(entries))
	}

	tableMap := make(map[string]bool)
	for _, entry := range entries {
		tableMap[entry.ID()] = true
	}

	for _, id := range expectedTables {
		if !tableMap[id] {
			t.Errorf("Expected table %s not found in catalog", id)
		}
	}
}

// verifyColumns checks that expected columns exist in a table
func verifyColumns(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()

	columnMap := make(map[string]bool)
	for _, col := range table.Columns {
		columnMap[col.Name] = true
	}

	for _, colName := range expectedColumns {
		if !columnMap[colName] {
			t.Errorf("Expected column %s not found in %s table", colName, table.TableName)
		}
	}
}

// verifyKey checks that a table has a key over exactly the expected columns
func verifyKey(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()

	for _, key := range table.Keys {
		if equalStrings(key.UniqueColumns, expectedColumns) {
			if len(key.Names) == 0 {
				t.Errorf("Key %v of %s has no name", expectedColumns, table.TableName)
			}
			return
		}
	}

	t.Errorf("Expected key %v on %s table not found", expectedColumns, table.TableName)
}

// verifyForeignKey checks that a foreign key from sourceColumn to targetTable exists and returns it
func verifyForeignKey(t *testing.T, table *schema.Table, sourceColumn, targetTable string) *schema.ForeignKey {
	t.Helper()

	for i, fk := range table.ForeignKeys {
		if len(fk.ForeignKeyColumns) == 0 || len(fk.ReferencedColumns) != len(fk.ForeignKeyColumns) {
			continue
		}
		if fk.ForeignKeyColumns[0].ColumnName == sourceColumn && fk.ReferencedColumns[0].TableName == targetTable {
			if len(fk.Names) == 0 {
				t.Errorf("Foreign key %s.%s has no name", table.TableName, sourceColumn)
			}
			return &table.ForeignKeys[i]
		}
	}

	t.Errorf("Expected foreign key from %s.%s to %s not found", table.TableName, sourceColumn, targetTable)
	return nil
}

// findTable is a helper function to find a table by schema and name in the catalog
func findTable(c *schema.Catalog, schemaName, tableName string) *schema.Table {
	s, ok := c.Schemas.Get(schemaName)
	if !ok {
		return nil
	}
	table, _ := s.Tables.Get(tableName)
	return table
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
