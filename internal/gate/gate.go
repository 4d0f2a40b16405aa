package gate

import (
	"fmt"
	"strings"

	"periodscan/domain/residual"
	"periodscan/domain/spectrum"
	"periodscan/domain/verdict"
	"periodscan/internal"
	"periodscan/internal/errors"
)

// Thresholds are the catastrophic cutoffs the gate enforces. They are
// configuration defaults, overridable and logged per run.
type Thresholds struct {
	CatastrophicChi2   float64
	CatastrophicMedian float64
}

// Gate is the single authoritative decision point between residual
// computation and Monte Carlo work. In strict mode any failed check is an
// error and the cell aborts; in permissive mode the caller receives a failed
// verdict and must short-circuit to an invalid result without ever invoking
// the null engine.
type Gate struct {
	thresholds Thresholds
	strict     bool
	logger     *internal.Logger
}

// New creates a gate for one run's mode and thresholds.
func New(thresholds Thresholds, strict bool, logger *internal.Logger) *Gate {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Gate{thresholds: thresholds, strict: strict, logger: logger}
}

// Strict reports the gate's operating mode.
func (g *Gate) Strict() bool { return g.strict }

// Thresholds returns the catastrophic cutoffs the gate enforces.
func (g *Gate) Thresholds() Thresholds { return g.thresholds }

// Evaluate runs every check and records every violation; the first failure
// never hides the rest. A failed unit resolution is fatal regardless of mode.
// Otherwise: strict mode returns a SANITY_CHECK_FAILURE error alongside the
// verdict, permissive mode returns the failed verdict with a nil error.
func (g *Gate) Evaluate(set residual.Set, unitRes spectrum.UnitResolution) (verdict.SanityVerdict, error) {
	var violations []verdict.Violation

	if set.Chi2PerDof > g.thresholds.CatastrophicChi2 {
		violations = append(violations, verdict.Violation{
			Check:     verdict.CheckChi2PerDof,
			Measured:  set.Chi2PerDof,
			Threshold: g.thresholds.CatastrophicChi2,
		})
	}
	if set.MedianAbsNormalized > g.thresholds.CatastrophicMedian {
		violations = append(violations, verdict.Violation{
			Check:     verdict.CheckMedianResidual,
			Measured:  set.MedianAbsNormalized,
			Threshold: g.thresholds.CatastrophicMedian,
		})
	}
	if set.NonPositiveSigmaCount > 0 {
		violations = append(violations, verdict.Violation{
			Check:     verdict.CheckPositiveSigma,
			Measured:  float64(set.NonPositiveSigmaCount),
			Threshold: 0,
		})
	}
	if set.Empty() || set.Dof == 0 {
		violations = append(violations, verdict.Violation{
			Check:     verdict.CheckAlignedRange,
			Measured:  float64(set.Dof),
			Threshold: 1,
		})
	}
	if unitRes.Failed {
		v := verdict.Violation{Check: verdict.CheckUnitResolution, Threshold: g.thresholds.CatastrophicChi2}
		if unitRes.Chi2PerDofAsCl != nil {
			v.Measured = *unitRes.Chi2PerDofAsCl
		}
		violations = append(violations, v)
	}

	if len(violations) == 0 {
		return verdict.Pass(), nil
	}

	sv := verdict.Fail(true, violations)
	for _, v := range violations {
		g.logger.Warn("sanity check %s violated: measured %g against threshold %g", v.Check, v.Measured, v.Threshold)
	}

	// A failed unit resolution means neither interpretation produced a
	// comparable spectrum; no mode may continue past it.
	if unitRes.Failed {
		return sv, errors.UnitsResolutionFailed(describe(violations))
	}
	if g.strict {
		return sv, errors.SanityCheckFailure(describe(violations))
	}
	return sv, nil
}

// describe names every violated check with its measured value so an abort
// message alone is enough to reproduce the decision.
func describe(violations []verdict.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = fmt.Sprintf("%s (measured %g, threshold %g)", v.Check, v.Measured, v.Threshold)
	}
	return "sanity checks violated: " + strings.Join(parts, "; ")
}
