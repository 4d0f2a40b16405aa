package grid

import (
	"context"
	"fmt"
	"math"

	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/domain/spectrum"
	"periodscan/internal/testkit"
)

// Control parameters. The negative-control repetition count trades runtime
// against the tightness of the false-positive bound; 20 repetitions with a
// three-sigma binomial margin catches gross miscalibration before any
// real-data cell is trusted.
const (
	negativeControlRuns = 20
	controlMinEll       = 2
	controlMaxEll       = 600
	controlLevel        = 1.0
	controlSigma        = 0.5
	controlAmplitude    = 5.0
)

// RunControls executes the self-test battery: negative controls (pure noise
// must classify null in the expected proportion) and a positive control
// (injected periodic signal must classify candidate or strong). Real-data
// results must not be trusted until this passes. Control cells persist their
// own tagged records.
func (r *Runner) RunControls(ctx context.Context, alpha float64) error {
	runID := core.RunID(core.NewID())
	configHash := core.ComputeConfigHash(r.grid.Fingerprint())
	cell := r.controlCell()

	// Negative controls: independent white-noise observations against a flat
	// model. Count positives against a binomial three-sigma bound around alpha.
	positives := 0
	for i := 0; i < negativeControlRuns; i++ {
		spec := testkit.NoiseSpec{
			MinEll: controlMinEll,
			MaxEll: controlMaxEll,
			Level:  controlLevel,
			Sigma:  controlSigma,
			Seed:   cell.Seed + int64(1000+i),
		}
		obs := testkit.WhiteNoiseSpectrum(spectrum.RoleObservation, spectrum.UnitsCl, spec)
		model := testkit.FlatModelSpectrum(spectrum.UnitsCl, spec)

		negCell := cell
		negCell.Seed = cell.Seed + int64(i)
		record, err := r.executeCell(ctx, runID, configHash, obs, model, negCell, run.ControlNegative)
		if err != nil {
			return fmt.Errorf("negative control %d failed to execute: %w", i, err)
		}
		if record.Result.Positive() {
			positives++
		}
	}

	bound := alpha + 3*math.Sqrt(alpha*(1-alpha)/float64(negativeControlRuns))
	fraction := float64(positives) / float64(negativeControlRuns)
	if fraction > bound {
		return fmt.Errorf("negative controls miscalibrated: %d/%d positive (%.3f) exceeds alpha=%g bound %.3f",
			positives, negativeControlRuns, fraction, alpha, bound)
	}

	// Positive control: a sinusoid at the control cell's candidate period must
	// be detected.
	spec := testkit.NoiseSpec{
		MinEll: controlMinEll,
		MaxEll: controlMaxEll,
		Level:  controlLevel,
		Sigma:  controlSigma,
		Seed:   cell.Seed,
	}
	obs := testkit.PeriodicSpectrum(spectrum.UnitsCl, spec, cell.Period, controlAmplitude*controlSigma)
	model := testkit.FlatModelSpectrum(spectrum.UnitsCl, spec)

	record, err := r.executeCell(ctx, runID, configHash, obs, model, cell, run.ControlPositive)
	if err != nil {
		return fmt.Errorf("positive control failed to execute: %w", err)
	}
	if !record.Result.Positive() {
		return fmt.Errorf("positive control not detected: significance=%s at period %d",
			record.Result.Significance, cell.Period)
	}

	r.logger.Info("controls passed: %d/%d negative positives (bound %.3f), positive control %s",
		positives, negativeControlRuns, bound, record.Result.Significance)
	return nil
}

// controlCell picks the first grid coordinates as the control configuration.
func (r *Runner) controlCell() run.CellSettings {
	cells := r.grid.Cells()
	return cells[0]
}
