package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileHigher(t *testing.T) {
	tests := []struct {
		name   string
		sorted []int
		p      int
		want   int
	}{
		{name: "median odd", sorted: []int{1, 1, 2, 3, 5}, p: 50, want: 2},
		{name: "p95 odd", sorted: []int{1, 1, 2, 3, 5}, p: 95, want: 5},
		{name: "median even rounds up", sorted: []int{1, 2, 3, 4}, p: 50, want: 3},
		{name: "single value", sorted: []int{7}, p: 95, want: 7},
		{name: "zero percentile", sorted: []int{2, 4, 6}, p: 0, want: 2},
		{name: "hundredth percentile", sorted: []int{2, 4, 6}, p: 100, want: 6},
		{name: "exact rank", sorted: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, p: 95, want: 19},
		{name: "clamped", sorted: []int{1, 2}, p: 150, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentileHigher(tt.sorted, tt.p))
		})
	}
}

func TestSummarize(t *testing.T) {
	tables := []string{"a", "b", "c", "d", "e", "f", "g"}
	values := []int{1, 0, 5, 2, 3, 5, 1}

	s := Summarize("foreign keys", values, tables)

	assert.Equal(t, "foreign keys", s.Label)
	assert.Equal(t, 6, s.NonZero)
	// sorted non-zero: 1 1 2 3 5 5
	assert.Equal(t, 3, s.Median)
	assert.Equal(t, 5, s.P95)
	assert.Equal(t, 5, s.Max)
	assert.Equal(t, []string{"c", "f"}, s.MaxTables)
	assert.Equal(t, []Bin{{Value: 1, Tables: 2}, {Value: 2, Tables: 1}, {Value: 3, Tables: 1}, {Value: 5, Tables: 2}}, s.Bins)
}

func TestSummarizeSpecSequence(t *testing.T) {
	s := Summarize("columns", []int{1, 1, 2, 3, 5}, []string{"t1", "t2", "t3", "t4", "t5"})
	assert.Equal(t, 2, s.Median)
	assert.Equal(t, []string{"t5"}, s.MaxTables)
}

func TestSummarizeAllZero(t *testing.T) {
	s := Summarize("annotations", []int{0, 0}, []string{"a", "b"})
	assert.True(t, s.Empty())
	assert.Nil(t, s.MaxTables)
	assert.Nil(t, s.Bins)
}
