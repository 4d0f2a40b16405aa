package grid

import (
	"context"
	"testing"

	"periodscan/app"
	"periodscan/domain/run"
	"periodscan/domain/spectrum"
	"periodscan/domain/stats"
	"periodscan/internal/config"
	"periodscan/internal/gate"
	"periodscan/internal/nullmodel"
	"periodscan/internal/prereg"
	"periodscan/internal/residual"
	"periodscan/internal/rng"
	"periodscan/internal/significance"
	"periodscan/internal/testkit"
	"periodscan/internal/units"
)

func testGrid(strict bool) *config.Grid {
	return &config.Grid{
		WindowSizes:                 []int{60},
		TargetResolutions:           []int{0},
		NullModels:                  []string{"phi-roll"},
		MCSamples:                   []int{300},
		Seeds:                       []int64{42},
		CandidatePeriods:            []int{8, 16},
		StrictMode:                  &strict,
		FDRLevel:                    0.05,
		CatastrophicChi2Threshold:   1e6,
		CatastrophicMedianThreshold: 1e4,
		CellTimeoutSeconds:          60,
		Workers:                     2,
	}
}

func newRunner(t *testing.T, grid *config.Grid, ledger *testkit.InMemoryLedger) *Runner {
	t.Helper()
	if err := grid.Validate(); err != nil {
		t.Fatalf("test grid invalid: %v", err)
	}
	thresholds, err := prereg.Default()
	if err != nil {
		t.Fatalf("prereg.Default: %v", err)
	}
	g := gate.New(gate.Thresholds{
		CatastrophicChi2:   grid.CatastrophicChi2Threshold,
		CatastrophicMedian: grid.CatastrophicMedianThreshold,
	}, grid.Strict(), nil)
	engine := nullmodel.NewEngine(rng.New(), 2)
	pipeline := app.NewCellPipeline(g, engine, significance.NewEvaluator(thresholds),
		units.DefaultHeuristic(), residual.Options{Interpolate: grid.Interpolate}, nil)
	return NewRunner(grid, pipeline, ledger, nil)
}

func cleanPair() (spectrum.Spectrum, spectrum.Spectrum) {
	spec := testkit.NoiseSpec{MinEll: 2, MaxEll: 400, Level: 1.0, Sigma: 0.5, Seed: 11}
	obs := testkit.WhiteNoiseSpectrum(spectrum.RoleObservation, spectrum.UnitsCl, spec)
	model := testkit.FlatModelSpectrum(spectrum.UnitsCl, spec)
	return obs, model
}

func TestRunPersistsEveryCell(t *testing.T) {
	ledger := testkit.NewInMemoryLedger()
	runner := newRunner(t, testGrid(true), ledger)
	obs, model := cleanPair()

	summary, err := runner.Run(context.Background(), obs, model)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalCells != 2 {
		t.Fatalf("total cells = %d, want 2", summary.TotalCells)
	}
	if summary.InvalidCells != 0 {
		t.Errorf("invalid cells = %d, want 0", summary.InvalidCells)
	}
	if !summary.StrictMode {
		t.Error("summary must record the mode")
	}

	records, err := ledger.List(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("persisted %d records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.RunID != summary.RunID {
			t.Error("record missing run ID")
		}
		if rec.ConfigHash.String() == "" {
			t.Error("record missing config hash")
		}
		if rec.Control != run.ControlNone {
			t.Errorf("real-data record tagged as %s control", rec.Control)
		}
		if rec.Result.PValue == nil {
			t.Error("valid record missing p-value")
		}
	}

	// FDR correction ran over both testable cells and the summary carries it.
	if len(summary.Corrected) != 2 {
		t.Fatalf("corrected results = %d, want 2", len(summary.Corrected))
	}
	for i, cell := range summary.Cells {
		if cell.QValue == nil {
			t.Errorf("cell %d missing q-value after correction", i)
		}
	}

	if stored, ok := ledger.Summary(summary.RunID); !ok {
		t.Error("summary not persisted")
	} else if stored.TotalCells != summary.TotalCells {
		t.Error("persisted summary differs")
	}
}

func TestRunDeterministicAcrossRepeats(t *testing.T) {
	obs, model := cleanPair()

	first := testkit.NewInMemoryLedger()
	a, err := newRunner(t, testGrid(true), first).Run(context.Background(), obs, model)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := testkit.NewInMemoryLedger()
	b, err := newRunner(t, testGrid(true), second).Run(context.Background(), obs, model)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(a.Cells) != len(b.Cells) {
		t.Fatalf("cell counts differ: %d vs %d", len(a.Cells), len(b.Cells))
	}
	for i := range a.Cells {
		ra, rb := a.Cells[i].Result, b.Cells[i].Result
		if *ra.PValue != *rb.PValue {
			t.Errorf("cell %d: p-values differ across identical runs: %g vs %g", i, *ra.PValue, *rb.PValue)
		}
		if ra.ObservedStatistic != rb.ObservedStatistic {
			t.Errorf("cell %d: observed statistic differs", i)
		}
	}
}

func TestRunStrictAbortsButPersists(t *testing.T) {
	ledger := testkit.NewInMemoryLedger()
	runner := newRunner(t, testGrid(true), ledger)

	obs, model := cleanPair()
	for i := range obs.Points {
		obs.Points[i].Sigma = 0 // corrupt uncertainties: every cell fails the gate
	}

	_, err := runner.Run(context.Background(), obs, model)
	if err == nil {
		t.Fatal("strict run must abort on a sanity failure")
	}

	// The failing cell's record must survive the abort for the audit trail.
	records := allRecords(t, ledger)
	if len(records) == 0 {
		t.Fatal("aborted run left no records")
	}
	for _, rec := range records {
		if rec.Result.Significance != stats.SignificanceInvalid {
			t.Error("failed cell recorded as valid")
		}
		if rec.SanityChecksPassed {
			t.Error("failed cell recorded as passing the gate")
		}
	}
}

func TestRunPermissiveContinuesPastFailures(t *testing.T) {
	ledger := testkit.NewInMemoryLedger()
	runner := newRunner(t, testGrid(false), ledger)

	obs, model := cleanPair()
	for i := range obs.Points {
		obs.Points[i].Sigma = 0
	}

	summary, err := runner.Run(context.Background(), obs, model)
	if err != nil {
		t.Fatalf("permissive run must complete: %v", err)
	}
	if summary.InvalidCells != summary.TotalCells {
		t.Errorf("invalid = %d of %d, want all cells invalid", summary.InvalidCells, summary.TotalCells)
	}
	if len(summary.Corrected) != 0 {
		t.Error("no FDR correction over an all-invalid run")
	}
	for _, rec := range summary.Cells {
		if rec.Result.InvalidReason != stats.ReasonSanityCheckFailure {
			t.Errorf("invalid reason = %s, want sanity_check_failure", rec.Result.InvalidReason)
		}
		if rec.QValue != nil {
			t.Error("invalid cell must not carry a q-value")
		}
	}
}

func TestRunCancelledLeavesNoPartialRecords(t *testing.T) {
	ledger := testkit.NewInMemoryLedger()
	runner := newRunner(t, testGrid(true), ledger)
	obs, model := cleanPair()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx, obs, model); err == nil {
		t.Fatal("a cancelled run must fail")
	}

	// Cancellation cuts cells short before they classify; none of those may
	// reach the ledger as half-built records.
	for _, rec := range allRecords(t, ledger) {
		if rec.Result.Significance == "" {
			t.Errorf("cell %s persisted without a tagged outcome", rec.Settings.Key())
		}
	}
}

func TestRunControls(t *testing.T) {
	ledger := testkit.NewInMemoryLedger()
	runner := newRunner(t, testGrid(true), ledger)

	if err := runner.RunControls(context.Background(), 0.05); err != nil {
		t.Fatalf("RunControls: %v", err)
	}

	records := allRecords(t, ledger)
	var negatives, positives int
	for _, rec := range records {
		switch rec.Control {
		case run.ControlNegative:
			negatives++
		case run.ControlPositive:
			positives++
			if !rec.Result.Positive() {
				t.Errorf("positive control classified %s", rec.Result.Significance)
			}
		default:
			t.Errorf("control run produced an untagged record %s", rec.Settings.Key())
		}
	}
	if negatives != 20 {
		t.Errorf("negative control records = %d, want 20", negatives)
	}
	if positives != 1 {
		t.Errorf("positive control records = %d, want 1", positives)
	}
}

// allRecords drains the ledger regardless of run ID.
func allRecords(t *testing.T, ledger *testkit.InMemoryLedger) []run.Record {
	t.Helper()
	records, err := ledger.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	return records
}
