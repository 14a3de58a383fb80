package rules

import (
	"context"

	"golang.org/x/sync/errgroup"

	"slideapp/pkg/reagent"
)

// RowResult is the outcome of validating one slide row.
type RowResult struct {
	Index  int            `json:"index"`
	Valid  bool           `json:"valid"`
	Result reagent.Result `json:"result"`
}

// ValidateRows validates each row of primaries against serumHost using up to
// workers goroutines (unbounded when workers <= 0). Results keep row order.
// Rows are only read; callers must not mutate them until ValidateRows returns.
func ValidateRows(ctx context.Context, rows [][]reagent.PrimaryAntibody, serumHost string, workers int) ([]RowResult, error) {
	results := make([]RowResult, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := EvaluatePrimarySelection(row, serumHost)
			results[i] = RowResult{Index: i, Valid: !res.HasBlocking(), Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
