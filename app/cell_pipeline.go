package app

import (
	"context"
	stderrors "errors"
	"strconv"

	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/domain/spectrum"
	"periodscan/domain/stats"
	"periodscan/domain/verdict"
	"periodscan/internal"
	"periodscan/internal/errors"
	"periodscan/internal/gate"
	"periodscan/internal/nullmodel"
	"periodscan/internal/residual"
	"periodscan/internal/significance"
	"periodscan/internal/units"
)

// CellPipeline executes the full per-cell sequence: unit resolution, residual
// computation, sanity gating, null generation, significance evaluation. The
// ordering is an invariant, not an optimization: the gate decision is made
// exactly once per residual set and no null sample is ever drawn from a
// failed gate.
type CellPipeline struct {
	gate      *gate.Gate
	engine    *nullmodel.Engine
	evaluator *significance.Evaluator
	heuristic units.HeuristicThresholds
	options   residual.Options
	logger    *internal.Logger
}

// NewCellPipeline wires the pipeline stages for one run.
func NewCellPipeline(g *gate.Gate, engine *nullmodel.Engine, evaluator *significance.Evaluator, heuristic units.HeuristicThresholds, options residual.Options, logger *internal.Logger) *CellPipeline {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CellPipeline{
		gate:      g,
		engine:    engine,
		evaluator: evaluator,
		heuristic: heuristic,
		options:   options,
		logger:    logger,
	}
}

// ExecuteCell runs one grid cell and assembles its record. The returned error
// is non-nil only for conditions that abort the run: strict-mode sanity
// failures, failed unit resolution, and unresolvable observation units. A
// permissive-mode sanity failure and a cell timeout both return a record
// tagged invalid with a nil error so the grid run continues.
func (p *CellPipeline) ExecuteCell(ctx context.Context, obs, model spectrum.Spectrum, cell run.CellSettings) (run.Record, error) {
	record := run.Record{
		CellID:     core.CellID(core.NewID()),
		Settings:   cell,
		StrictMode: p.gate.Strict(),
		CreatedAt:  core.Now(),
	}

	// Resolve observation units. The observation anchors the comparison, so
	// an undecidable observation is fatal for the cell in every mode.
	obsRes := p.resolveUnits(&obs)
	record.ObsUnits = obs.Units
	if obs.Units == spectrum.UnitsUnknown {
		record.Result = stats.Invalid(cell.Period, stats.ReasonUnitResolutionFailed)
		record.Sanity = verdict.Fail(true, []verdict.Violation{{Check: verdict.CheckUnitResolution}})
		return record, errors.UnitsAmbiguous("observation units undecidable from header and magnitude (method " + string(obsRes.Method) + ")")
	}

	// Resolve model units, falling back to the chi2 precheck when the header
	// and magnitude stages leave them unknown.
	modelRes := p.resolveUnits(&model)
	record.ModelUnitsOriginal = model.Units
	if model.Units == spectrum.UnitsUnknown {
		pre, err := residual.AutoResolveModelUnits(obs, model, p.options, p.gate.Thresholds().CatastrophicChi2)
		if err != nil {
			return record, errors.Wrap(err, "model unit precheck failed")
		}
		modelRes = pre
		record.UnitResolution = pre
		if pre.Failed {
			// Both interpretations catastrophic: terminal in every mode.
			record.Result = stats.Invalid(cell.Period, stats.ReasonUnitResolutionFailed)
			record.Sanity = verdict.Fail(true, []verdict.Violation{{
				Check:     verdict.CheckUnitResolution,
				Measured:  *pre.Chi2PerDofAsCl,
				Threshold: p.gate.Thresholds().CatastrophicChi2,
			}})
			record.ModelUnitsUsed = spectrum.UnitsUnknown
			return record, errors.UnitsResolutionFailed(
				"both model interpretations are catastrophic: chi2/dof as Cl " +
					formatFloat(*pre.Chi2PerDofAsCl) + ", as Dl " + formatFloat(*pre.Chi2PerDofAsDl))
		}
		model.Units = pre.Units
	} else {
		record.UnitResolution = modelRes
	}
	record.ModelUnitsUsed = model.Units

	// Residual computation over the full aligned range.
	set, err := residual.Compute(obs, model, p.options)
	if err != nil {
		return record, errors.Wrap(err, "residual computation failed")
	}
	record.Chi2PerDof = set.Chi2PerDof
	record.MedianAbsResidualOverSigma = set.MedianAbsNormalized
	record.Dof = set.Dof

	// Sanity gate: the single decision point. All Monte Carlo work is behind it.
	sv, gateErr := p.gate.Evaluate(set, modelRes)
	record.Sanity = sv
	record.SanityChecksPassed = sv.Passed
	if gateErr != nil {
		record.Result = stats.Invalid(cell.Period, invalidReasonFor(gateErr))
		return record, gateErr
	}
	if !sv.Passed {
		// Permissive mode: short-circuit to invalid, skip Monte Carlo.
		record.Result = stats.Invalid(cell.Period, stats.ReasonSanityCheckFailure)
		return record, nil
	}

	// Periodicity statistic on the windowed, optionally rebinned view.
	ells, values := residual.WindowTail(set, cell.WindowSize)
	ells, values = residual.Rebin(ells, values, cell.TargetResolution)
	observed := nullmodel.PeriodPower(ells, values, cell.Period)

	samples, err := p.engine.Generate(ctx, ells, values, cell.Period, cell.NullModel, cell.MCSamples, cell.Seed)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("cell %s exceeded its wall-clock budget", cell.Key())
			record.Result = stats.Invalid(cell.Period, stats.ReasonComputeTimeout)
			return record, nil
		}
		return record, errors.Wrap(err, "null distribution generation failed")
	}

	result, err := p.evaluator.Evaluate(cell.Period, observed, samples)
	if err != nil {
		return record, errors.Wrap(err, "significance evaluation failed")
	}
	record.Result = result

	p.logger.Info("cell %s: chi2/dof=%.4g p=%.4g significance=%s",
		cell.Key(), set.Chi2PerDof, *result.PValue, result.Significance)
	return record, nil
}

// resolveUnits applies the header and magnitude stages in place when the
// spectrum arrived untagged.
func (p *CellPipeline) resolveUnits(s *spectrum.Spectrum) spectrum.UnitResolution {
	if s.Units != spectrum.UnitsUnknown {
		return spectrum.UnitResolution{Units: s.Units, Method: spectrum.MethodHeaderKeyword}
	}
	res := units.Resolve(s.Header, s.Points, p.heuristic)
	s.Units = res.Units
	return res
}

// invalidReasonFor maps a gate error to the recorded invalid reason.
func invalidReasonFor(err error) stats.InvalidReason {
	if errors.GetCode(err) == errors.CodeUnitsResolutionFailed {
		return stats.ReasonUnitResolutionFailed
	}
	return stats.ReasonSanityCheckFailure
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
