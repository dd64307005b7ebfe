// Package stats summarizes per-table count distributions.
package stats

import "sort"

// Bin is one histogram bar: the number of tables having exactly Value
type Bin struct {
	Value  int `json:"value"`
	Tables int `json:"tables"`
}

// Summary describes the non-zero part of a per-table count distribution
type Summary struct {
	Label     string   `json:"label"`
	NonZero   int      `json:"non_zero"`
	Median    int      `json:"median"`
	P95       int      `json:"p95"`
	Max       int      `json:"max"`
	MaxTables []string `json:"max_tables"`
	Bins      []Bin    `json:"bins"`
}

// Empty reports whether every value was zero
func (s Summary) Empty() bool {
	return s.NonZero == 0
}

// Summarize computes the summary of values, aligned by index with tables.
// Zero values are dropped before any statistic is taken.
func Summarize(label string, values []int, tables []string) Summary {
	s := Summary{Label: label}

	nonZero := make([]int, 0, len(values))
	for _, v := range values {
		if v > 0 {
			nonZero = append(nonZero, v)
		}
	}
	s.NonZero = len(nonZero)
	if s.NonZero == 0 {
		return s
	}

	sort.Ints(nonZero)
	s.Median = PercentileHigher(nonZero, 50)
	s.P95 = PercentileHigher(nonZero, 95)
	s.Max = nonZero[len(nonZero)-1]

	for i, v := range values {
		if v == s.Max && i < len(tables) {
			s.MaxTables = append(s.MaxTables, tables[i])
		}
	}

	for _, v := range nonZero {
		if n := len(s.Bins); n > 0 && s.Bins[n-1].Value == v {
			s.Bins[n-1].Tables++
			continue
		}
		s.Bins = append(s.Bins, Bin{Value: v, Tables: 1})
	}

	return s
}

// PercentileHigher returns the p-th percentile of sorted, rounding the rank
// up so the result is always an observed value. sorted must be ascending and
// non-empty; p is clamped to [0, 100].
func PercentileHigher(sorted []int, p int) int {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	n := len(sorted)
	// ceil(p*(n-1)/100) in integers
	idx := (p*(n-1) + 99) / 100
	return sorted[idx]
}
