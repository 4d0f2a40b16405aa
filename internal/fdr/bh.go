// Package fdr applies Benjamini-Hochberg false-discovery-rate correction
// across a batch of test results, one per parameter-grid cell.
package fdr

import (
	"fmt"
	"sort"

	"periodscan/domain/stats"
)

// Correct computes BH q-values and decisions at the given FDR level. The
// batch must contain only non-invalid results: an invalid result has no
// p-value and correcting around it would misstate the family size. Results
// come back in the input order. Pure function, deterministic given the batch
// and level.
func Correct(results []stats.TestResult, level float64) ([]stats.FDRCorrectedResult, error) {
	if level <= 0 || level >= 1 {
		return nil, fmt.Errorf("fdr level must be in (0, 1), got %g", level)
	}
	for i, r := range results {
		if r.Significance == stats.SignificanceInvalid || r.PValue == nil {
			return nil, fmt.Errorf("result %d is invalid or carries no p-value; correct only non-invalid batches", i)
		}
	}
	if len(results) == 0 {
		return nil, nil
	}

	m := len(results)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return *results[order[a]].PValue < *results[order[b]].PValue
	})

	// q_i = p_i * m / rank_i, then enforce monotonicity from the largest rank
	// down so sorting by p-value always yields non-decreasing q-values.
	qByRank := make([]float64, m)
	for rank := 1; rank <= m; rank++ {
		p := *results[order[rank-1]].PValue
		q := p * float64(m) / float64(rank)
		if q > 1 {
			q = 1
		}
		qByRank[rank-1] = q
	}
	for i := m - 2; i >= 0; i-- {
		if qByRank[i] > qByRank[i+1] {
			qByRank[i] = qByRank[i+1]
		}
	}

	corrected := make([]stats.FDRCorrectedResult, m)
	for rank := 1; rank <= m; rank++ {
		idx := order[rank-1]
		corrected[idx] = stats.FDRCorrectedResult{
			TestResult: results[idx],
			QValue:     qByRank[rank-1],
			Rejected:   qByRank[rank-1] <= level,
		}
	}
	return corrected, nil
}
