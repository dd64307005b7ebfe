package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemausage/internal/annotation"
	"github.com/tordrt/schemausage/internal/apperrors"
	"github.com/tordrt/schemausage/internal/loader"
)

func TestNewCase(t *testing.T) {
	load := &loader.Result{
		Tables:           []string{"isa:a", "isa:b", "isa:c"},
		Ignored:          []string{"public:x"},
		AnnotationUsage:  annotation.Tally{"tag:display": 2, "tag:visible-columns": 1},
		AnnotationCounts: []int{0, 2, 1},
		ColumnCounts:     []int{4, 4, 9},
		ForeignKeyCounts: []int{0, 1, 3},
		InvalidAnnotationCounts: map[string]int{
			"isa:a": 2,
			"isa:c": 5,
		},
		InvalidAnnotations: []apperrors.InvalidAnnotation{
			{Table: "isa:a", Scope: "table", Name: "bogus", Reason: "name not allowed in scope"},
		},
	}

	c := NewCase("demo", "demo.json", load)

	assert.Equal(t, "demo", c.Name)
	assert.Equal(t, []string{"isa:a", "isa:b", "isa:c"}, c.Tables)
	assert.Equal(t, []string{"public:x"}, c.IgnoredTables)

	assert.Equal(t, LabelForeignKeys, c.ForeignKeys.Label)
	assert.Equal(t, 2, c.ForeignKeys.NonZero)
	assert.Equal(t, 3, c.ForeignKeys.Max)
	assert.Equal(t, []string{"isa:c"}, c.ForeignKeys.MaxTables)

	assert.Equal(t, 9, c.Columns.Max)
	assert.Equal(t, 3, c.Columns.NonZero)

	require.Len(t, c.MostUsedAnnotations, 2)
	assert.Equal(t, "tag:display", c.MostUsedAnnotations[0].Name)

	assert.Equal(t, []loader.NameCount{{Name: "isa:c", Count: 5}, {Name: "isa:a", Count: 2}}, c.InvalidAnnotationTables)
	assert.Equal(t, []string{"isa:a"}, c.OnlyInvalidTables)

	summaries := c.Summaries()
	require.Len(t, summaries, 3)
	assert.Equal(t, []string{LabelForeignKeys, LabelAnnotations, LabelColumns},
		[]string{summaries[0].Label, summaries[1].Label, summaries[2].Label})
}
