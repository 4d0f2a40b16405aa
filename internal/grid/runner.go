// Package grid orchestrates the full parameter-grid run: cell enumeration,
// pipeline execution with per-cell timeouts, append-only record persistence,
// self-test controls, and the final false-discovery-rate correction.
package grid

import (
	"context"

	"golang.org/x/sync/errgroup"

	"periodscan/app"
	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/domain/spectrum"
	"periodscan/domain/stats"
	"periodscan/internal"
	"periodscan/internal/config"
	"periodscan/internal/fdr"
	"periodscan/ports"
)

// Runner executes one configuration grid against one observation/model pair.
// Cells share no mutable state: each owns its context, its pipeline outcome
// and its ledger record, so aborting between cells never corrupts persisted
// records.
type Runner struct {
	grid     *config.Grid
	pipeline *app.CellPipeline
	ledger   ports.RunLedger
	logger   *internal.Logger
}

// NewRunner wires a grid runner.
func NewRunner(grid *config.Grid, pipeline *app.CellPipeline, ledger ports.RunLedger, logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Runner{grid: grid, pipeline: pipeline, ledger: ledger, logger: logger}
}

// Run executes every cell of the grid, persists one record per cell, applies
// Benjamini-Hochberg correction across the non-invalid results and writes the
// aggregated summary. In strict mode the first sanity failure aborts the whole
// run with the cell's diagnostic; records persisted before the abort remain
// valid.
func (r *Runner) Run(ctx context.Context, obs, model spectrum.Spectrum) (run.Summary, error) {
	runID := core.RunID(core.NewID())
	configHash := core.ComputeConfigHash(r.grid.Fingerprint())
	cells := r.grid.Cells()

	r.logger.Info("grid run %s: %d cells, strict=%v, fdr_level=%g, catastrophic thresholds chi2=%g median=%g",
		runID, len(cells), r.grid.Strict(), r.grid.FDRLevel,
		r.grid.CatastrophicChi2Threshold, r.grid.CatastrophicMedianThreshold)

	records := make([]run.Record, len(cells))

	g, gctx := errgroup.WithContext(ctx)
	if r.grid.Workers > 0 {
		g.SetLimit(r.grid.Workers)
	} else {
		g.SetLimit(1)
	}

	for i, cell := range cells {
		i, cell := i, cell
		g.Go(func() error {
			record, err := r.executeCell(gctx, runID, configHash, obs, model, cell, run.ControlNone)
			records[i] = record
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return run.Summary{}, err
	}

	summary, err := r.summarize(runID, records)
	if err != nil {
		return run.Summary{}, err
	}
	if err := r.ledger.WriteSummary(ctx, summary); err != nil {
		return run.Summary{}, err
	}
	return summary, nil
}

// executeCell runs one cell under its wall-clock budget and persists its
// record. A record with a tagged outcome is persisted even when the cell
// aborts the run, so an abort is auditable from the ledger alone; a cell cut
// short before classifying leaves nothing behind.
func (r *Runner) executeCell(ctx context.Context, runID core.RunID, configHash core.ConfigHash, obs, model spectrum.Spectrum, cell run.CellSettings, control run.ControlKind) (run.Record, error) {
	cellCtx, cancel := context.WithTimeout(ctx, r.grid.CellTimeout())
	defer cancel()

	record, execErr := r.pipeline.ExecuteCell(cellCtx, obs, model, cell)
	record.RunID = runID
	record.ConfigHash = configHash
	record.Control = control

	// A cancelled run or an internal pipeline failure leaves the result
	// untagged. Such a record never reaches the ledger: every persisted record
	// carries a classification from the closed set.
	if execErr != nil && record.Result.Significance == "" {
		r.logger.Error("cell %s aborted before producing a result: %v", cell.Key(), execErr)
		return record, execErr
	}

	if err := r.ledger.Append(ctx, record); err != nil {
		return record, err
	}
	if execErr != nil {
		r.logger.Error("cell %s aborted: %v", cell.Key(), execErr)
		return record, execErr
	}
	return record, nil
}

// summarize applies the FDR correction over non-invalid cells and assembles
// the aggregated artifact.
func (r *Runner) summarize(runID core.RunID, records []run.Record) (run.Summary, error) {
	summary := run.Summary{
		RunID:      runID,
		FDRLevel:   r.grid.FDRLevel,
		StrictMode: r.grid.Strict(),
		TotalCells: len(records),
		CreatedAt:  core.Now(),
	}

	var testable []stats.TestResult
	var testableIdx []int
	for i, rec := range records {
		if rec.Result.Significance == stats.SignificanceInvalid {
			summary.InvalidCells++
			continue
		}
		if rec.Result.Positive() {
			summary.Positives++
		}
		testable = append(testable, rec.Result)
		testableIdx = append(testableIdx, i)
	}

	if len(testable) > 0 {
		corrected, err := fdr.Correct(testable, r.grid.FDRLevel)
		if err != nil {
			return run.Summary{}, err
		}
		summary.Corrected = corrected
		for j, c := range corrected {
			q := c.QValue
			records[testableIdx[j]].QValue = &q
			if c.Rejected {
				summary.FDRPositives++
			}
		}
	}

	summary.Cells = records
	return summary, nil
}
