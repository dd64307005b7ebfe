// Package rowcount counts the rows of every table of a catalog, one query per
// table, and gives up on the whole batch at the first failure.
package rowcount

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/tordrt/schemausage/internal/apperrors"
)

// Counter returns the number of rows of one schema:table
type Counter interface {
	Count(ctx context.Context, table string) (int64, error)
}

// TableCount pairs a table with its row count
type TableCount struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// Result holds the counts of a complete batch
type Result struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
	// Sorted is ordered by count descending; ties keep table order
	Sorted []TableCount `json:"sorted"`
}

// Fetcher runs count batches
type Fetcher struct {
	counter Counter
	logger  *zap.Logger
}

// NewFetcher creates a fetcher over counter
func NewFetcher(counter Counter, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		counter: counter,
		logger:  logger.Named("rowcount"),
	}
}

// Fetch counts every table in order. The first failing table aborts the
// batch with a *apperrors.RemoteQueryFailure and no partial result.
func (f *Fetcher) Fetch(ctx context.Context, tables []string) (*Result, error) {
	res := &Result{Counts: make(map[string]int64, len(tables))}

	for _, table := range tables {
		n, err := f.counter.Count(ctx, table)
		if err != nil {
			f.logger.Error("Row count failed, aborting batch",
				zap.String("table", table),
				zap.Error(err))

			var failure *apperrors.RemoteQueryFailure
			if errors.As(err, &failure) {
				return nil, failure
			}
			return nil, &apperrors.RemoteQueryFailure{Table: table, Err: err}
		}

		f.logger.Debug("Counted rows", zap.String("table", table), zap.Int64("count", n))
		res.Counts[table] = n
		res.Total += n
		res.Sorted = append(res.Sorted, TableCount{Table: table, Count: n})
	}

	sort.SliceStable(res.Sorted, func(i, j int) bool {
		return res.Sorted[i].Count > res.Sorted[j].Count
	})

	return res, nil
}
