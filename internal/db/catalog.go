package db

import (
	"context"

	"github.com/tordrt/schemausage/internal/schema"
)

// CatalogExtractor reads a live database into a catalog document
type CatalogExtractor interface {
	ExtractCatalog(ctx context.Context, tables []string) (*schema.Catalog, error)
}

var (
	_ CatalogExtractor = (*Extractor)(nil)
	_ CatalogExtractor = (*MySQLExtractor)(nil)
	_ CatalogExtractor = (*SQLiteExtractor)(nil)
)

type tableRef struct {
	schema string
	name   string
}

func (r tableRef) String() string {
	return schema.TableID(r.schema, r.name)
}

// parseTableRefs reads schema:table ids, filing bare names under defaultSchema
func parseTableRefs(tables []string, defaultSchema string) []tableRef {
	refs := make([]tableRef, 0, len(tables))
	for _, t := range tables {
		if s, n, ok := schema.SplitTableID(t); ok {
			refs = append(refs, tableRef{schema: s, name: n})
			continue
		}
		refs = append(refs, tableRef{schema: defaultSchema, name: t})
	}
	return refs
}

func newTable(ref tableRef) *schema.Table {
	return &schema.Table{
		TableName:   ref.name,
		SchemaName:  ref.schema,
		Annotations: schema.Annotations{},
	}
}

// foreignKeyBuilder groups consecutive column pairs of the same constraint
type foreignKeyBuilder struct {
	keys []schema.ForeignKey
}

func (b *foreignKeyBuilder) add(name schema.ConstraintName, from, to schema.ColumnRef) {
	if n := len(b.keys); n == 0 || b.keys[n-1].Names[0] != name {
		b.keys = append(b.keys, schema.ForeignKey{
			Names:       []schema.ConstraintName{name},
			Annotations: schema.Annotations{},
		})
	}
	fk := &b.keys[len(b.keys)-1]
	fk.ForeignKeyColumns = append(fk.ForeignKeyColumns, from)
	fk.ReferencedColumns = append(fk.ReferencedColumns, to)
}
