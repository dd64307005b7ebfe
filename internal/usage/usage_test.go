package usage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tordrt/schemausage/internal/apperrors"
	"github.com/tordrt/schemausage/internal/loader"
	"github.com/tordrt/schemausage/internal/schema"
)

func testCatalog(t *testing.T) *loader.Result {
	t.Helper()

	fk := func(name, from, to string) schema.ForeignKey {
		return schema.ForeignKey{
			Names:             []schema.ConstraintName{{"isa", name}},
			ForeignKeyColumns: []schema.ColumnRef{{SchemaName: "isa", TableName: from, ColumnName: "ref"}},
			ReferencedColumns: []schema.ColumnRef{{SchemaName: "isa", TableName: to, ColumnName: "RID"}},
		}
	}

	c := schema.NewCatalog()
	c.AddTable("isa", &schema.Table{TableName: "wufoo_forms"})
	c.AddTable("isa", &schema.Table{
		TableName:   "dataset",
		ForeignKeys: []schema.ForeignKey{fk("dataset_project_fkey", "dataset", "project")},
	})
	c.AddTable("isa", &schema.Table{TableName: "project"})
	c.AddTable("isa", &schema.Table{
		TableName:   "experiment",
		ForeignKeys: []schema.ForeignKey{fk("experiment_dataset_fkey", "experiment", "dataset")},
	})

	return loader.New(loader.DefaultOptions(), zap.NewNop()).Load(c)
}

const outboundFacet = `{"and": [{"source": [{"outbound": ["isa", "dataset_project_fkey"]}, "RID"]}]}`

func TestEndToEnd(t *testing.T) {
	catalog := testCatalog(t)
	a := NewAnalyzer(catalog, Mapping{}, zap.NewNop())

	res := a.AnalyzeRows("log", []Row{
		{Table: "isa:wufoo_forms", Facet: `{"and": [{"source": [{"inbound": ["isa", "nope"]}]}]}`},
		{Table: "isa:dataset", Facet: outboundFacet},
	})

	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.InvalidTableRows)
	assert.Equal(t, map[string]int{"isa:wufoo_forms": 1}, res.InvalidTables)
	assert.Len(t, res.UsedTables, 2)
	assert.Equal(t, 2, res.UsedTables["isa:dataset"])
	assert.Equal(t, 1, res.UsedTables["isa:project"])
	assert.Equal(t, 1, res.EndTableCount())
	assert.Equal(t, 1, res.FacetNodes)
	assert.Equal(t, 0, res.InvalidFacetNodes)
	assert.Equal(t, []string{"isa:experiment"}, res.UnusedTables)
}

func TestInvalidTableContributesNoFacetNodes(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())

	res := a.AnalyzeRows("log", []Row{{Table: "isa:gone", Facet: outboundFacet}})

	assert.Equal(t, 1, res.InvalidTableRows)
	assert.Equal(t, 0, res.FacetNodes)
	assert.Empty(t, res.UsedTables)
}

func TestInboundReferenceIncrementsBothEndpoints(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())

	res := a.AnalyzeRows("log", []Row{{
		Table: "isa:project",
		Facet: `{"and": [{"source": [{"inbound": ["isa", "experiment_dataset_fkey"]}, "RID"]}]}`,
	}})

	assert.Equal(t, 1, res.UsedTables["isa:project"])
	assert.Equal(t, 1, res.UsedTables["isa:experiment"])
	assert.Equal(t, 1, res.UsedTables["isa:dataset"])
}

func TestTableMappingTalliesLoggedName(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{
		Tables: map[string]string{"Old:Dataset": "isa:dataset"},
	}, zap.NewNop())

	res := a.AnalyzeRows("log", []Row{{Table: "Old:Dataset"}})

	assert.Equal(t, 0, res.InvalidTableRows)
	assert.Equal(t, map[string]int{"Old:Dataset": 1}, res.UsedTables)
	assert.Equal(t, map[string]int{"Old:Dataset": 1}, res.EndTables)
	assert.Contains(t, res.UnusedTables, "isa:dataset")
}

func TestInvalidTablesKeyedByResolvedName(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{
		Tables: map[string]string{"Old:Thing": "New:Thing"},
	}, zap.NewNop())

	res := a.AnalyzeRows("log", []Row{{Table: "Old:Thing"}})

	assert.Equal(t, map[string]int{"New:Thing": 1}, res.InvalidTables)
}

func TestForeignKeyMapping(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{
		ForeignKeys: map[string]schema.ConstraintName{
			"isa:dataset_old_fkey":  {"isa", "dataset_project_fkey"},
			"isa:dangling_old_fkey": {"isa", "missing_fkey"},
		},
	}, zap.NewNop())

	res := a.AnalyzeRows("log", []Row{
		{Table: "isa:dataset", Facet: `{"and": [{"source": [{"outbound": ["isa", "dataset_old_fkey"]}]}]}`},
		{Table: "isa:dataset", Facet: `{"and": [{"source": [{"outbound": ["isa", "dangling_old_fkey"]}]}]}`},
	})

	assert.Equal(t, 2, res.FacetNodes)
	assert.Equal(t, 1, res.InvalidFacetNodes)
	assert.Equal(t, map[string]int{"isa:dangling_old_fkey": 1}, res.InvalidFacetBreakdown)
	assert.Equal(t, 1, res.UsedTables["isa:project"])
}

func TestUnresolvedFacetIsLoggedAndTallied(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.New(core))

	facet := `{"and": [{"source": [{"inbound": ["isa", "nope_fkey"]}, {"outbound": ["isa", "nope_fkey"]}, "RID"]}]}`
	res := a.AnalyzeRows("rbk_all.csv", []Row{{Table: "isa:dataset", Facet: facet}})

	assert.Equal(t, 2, res.FacetNodes)
	assert.Equal(t, 2, res.InvalidFacetNodes)
	assert.Equal(t, map[string]int{"isa:nope_fkey": 2}, res.InvalidFacetBreakdown)
	assert.Equal(t, []apperrors.UnresolvedFacetReference{
		{Node: "isa:nope_fkey", Row: 1},
		{Node: "isa:nope_fkey", Row: 1},
	}, res.Unresolved)

	entries := logs.FilterMessage("Unresolved facet reference").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "rbk_all.csv", fields["log"])
	assert.Equal(t, "isa:dataset", fields["c_table"])
	assert.Equal(t, facet, fields["c_facet"])
}

func TestFacetShapes(t *testing.T) {
	tests := []struct {
		name          string
		facet         string
		wantNodes     int
		wantInvalid   int
		wantMalformed int
	}{
		{name: "empty", facet: "", wantNodes: 0},
		{name: "malformed", facet: `{"and": [`, wantMalformed: 1},
		{name: "no and", facet: `{"or": []}`},
		{name: "not an object", facet: `[1, 2]`},
		{name: "and not a list", facet: `{"and": {"source": []}}`},
		{name: "source not a list", facet: `{"and": [{"source": "RID"}]}`},
		{name: "clause without source", facet: `{"and": [{"choices": [1]}]}`},
		{name: "entries without direction", facet: `{"and": [{"source": [{"filter": "x"}, "RID"]}]}`},
		{name: "inbound wins over outbound", facet: `{"and": [{"source": [{"inbound": ["isa", "dataset_project_fkey"], "outbound": ["x", "y"]}]}]}`, wantNodes: 1},
		{name: "reference with wrong arity", facet: `{"and": [{"source": [{"inbound": ["isa"]}]}]}`, wantNodes: 1, wantInvalid: 1},
		{name: "two clauses", facet: `{"and": [{"source": [{"outbound": ["isa", "dataset_project_fkey"]}]}, {"source": [{"inbound": ["isa", "experiment_dataset_fkey"]}]}]}`, wantNodes: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())
			res := a.AnalyzeRows("log", []Row{{Table: "isa:dataset", Facet: tt.facet}})

			assert.Equal(t, tt.wantNodes, res.FacetNodes)
			assert.Equal(t, tt.wantInvalid, res.InvalidFacetNodes)
			assert.Equal(t, tt.wantMalformed, res.MalformedFacetRows)
			// the end table is tallied whatever the facet looks like
			assert.GreaterOrEqual(t, res.UsedTables["isa:dataset"], 1)
		})
	}
}

func TestWrongArityNodeIdentifier(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())
	res := a.AnalyzeRows("log", []Row{{Table: "isa:dataset", Facet: `{"and": [{"source": [{"inbound": ["isa"]}]}]}`}})
	assert.Equal(t, map[string]int{`["isa"]`: 1}, res.InvalidFacetBreakdown)
}

func TestAnalyzeCSV(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())

	log := "c_id,c_table,c_facet\n" +
		"1,isa:dataset,\"{\"\"and\"\": [{\"\"source\"\": [{\"\"outbound\"\": [\"\"isa\"\", \"\"dataset_project_fkey\"\"]}, \"\"RID\"\"]}]}\"\n" +
		"2,isa:project,\n" +
		"3,isa:missing,\n" +
		"4,isa:dataset\n"

	res, err := a.Analyze(strings.NewReader(log), "inline.csv")
	require.NoError(t, err)

	assert.Equal(t, "inline.csv", res.Log)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 1, res.InvalidTableRows)
	assert.Equal(t, 3, res.UsedTables["isa:dataset"])
	assert.Equal(t, 2, res.UsedTables["isa:project"])
	assert.Equal(t, 2, res.EndTableCount())
	assert.Equal(t, 1, res.FacetNodes)
	assert.Equal(t, 0, res.MalformedFacetRows)
}

func TestAnalyzeMissingColumn(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())

	_, err := a.Analyze(strings.NewReader("c_table\nisa:dataset\n"), "log.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))

	_, err = a.Analyze(strings.NewReader("c_facet\n{}\n"), "log.csv")
	assert.True(t, errors.Is(err, apperrors.ErrMissingColumn))
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rbk_record.csv")
	require.NoError(t, os.WriteFile(path, []byte("c_table,c_facet\nisa:project,\n"), 0o644))

	a := NewAnalyzer(testCatalog(t), Mapping{}, zap.NewNop())
	res, err := a.AnalyzeFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"isa:project": 1}, res.UsedTables)

	_, err = a.AnalyzeFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSortedUsedTables(t *testing.T) {
	res := &Result{UsedTables: map[string]int{"b": 2, "a": 2, "c": 5}}
	assert.Equal(t, []loader.NameCount{
		{Name: "c", Count: 5},
		{Name: "a", Count: 2},
		{Name: "b", Count: 2},
	}, res.SortedUsedTables())
}
