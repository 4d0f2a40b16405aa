package significance

import (
	"fmt"
	"sort"

	montstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"periodscan/domain/stats"
	"periodscan/internal/prereg"
)

// Evaluator converts an observed statistic plus an empirical null distribution
// into a classified TestResult. Every threshold comes from the pre-registration
// artifact; nothing here is tunable at a call site.
type Evaluator struct {
	thresholds prereg.Thresholds
}

// NewEvaluator creates an evaluator bound to pre-registered thresholds.
func NewEvaluator(thresholds prereg.Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Thresholds returns the bound pre-registered thresholds.
func (e *Evaluator) Thresholds() prereg.Thresholds { return e.thresholds }

// Evaluate computes the empirical p-value with the add-one correction
//
//	p = (#{null >= observed} + 1) / (N + 1)
//
// so p can never be exactly zero, the z-score from the null mean and standard
// deviation, and the classification. The invalid branch never passes through
// here: a failed gate short-circuits before any null samples exist.
func (e *Evaluator) Evaluate(period int, observed float64, null []stats.NullSample) (stats.TestResult, error) {
	if len(null) == 0 {
		return stats.TestResult{}, fmt.Errorf("empty null distribution for period %d", period)
	}

	values := make([]float64, len(null))
	greaterOrEqual := 0
	for i, s := range null {
		values[i] = s.Statistic
		if s.Statistic >= observed {
			greaterOrEqual++
		}
	}

	p := float64(greaterOrEqual+1) / float64(len(null)+1)

	mean, err := montstats.Mean(values)
	if err != nil {
		return stats.TestResult{}, fmt.Errorf("null distribution mean: %w", err)
	}
	std, err := montstats.StandardDeviation(values)
	if err != nil {
		return stats.TestResult{}, fmt.Errorf("null distribution std: %w", err)
	}

	result := stats.TestResult{
		Period:            period,
		ObservedStatistic: observed,
		PValue:            &p,
		Null:              summarize(values, mean, std),
	}

	var z float64
	if std > 0 {
		z = (observed - mean) / std
		result.ZScore = &z
		tail := distuv.UnitNormal.Survival(z)
		result.ZTailP = &tail
	}

	switch {
	case p > e.thresholds.Alpha:
		result.Significance = stats.SignificanceNull
	case p <= e.thresholds.StrongMaxP && result.ZScore != nil && z >= e.thresholds.StrongMinZ:
		result.Significance = stats.SignificanceStrong
	default:
		result.Significance = stats.SignificanceCandidate
	}

	return result, nil
}

// summarize captures the null distribution's shape for the audit record.
func summarize(values []float64, mean, std float64) stats.NullDistributionSummary {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p95, _ := montstats.Percentile(sorted, 95)
	p99, _ := montstats.Percentile(sorted, 99)

	return stats.NullDistributionSummary{
		Mean:         mean,
		StdDev:       std,
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Percentile95: p95,
		Percentile99: p99,
		Samples:      len(values),
	}
}
