package localfs

import (
	"context"
	"testing"
	"time"

	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/domain/stats"
	"periodscan/internal/errors"
)

func testRecord(runID core.RunID, seed int64) run.Record {
	p := 0.02
	return run.Record{
		RunID:  runID,
		CellID: core.CellID(core.NewID()),
		Settings: run.CellSettings{
			WindowSize: 64, NullModel: stats.NullPhiRoll, MCSamples: 100, Seed: seed, Period: 10,
		},
		Result:    stats.TestResult{Period: 10, PValue: &p, Significance: stats.SignificanceCandidate},
		CreatedAt: core.Now(),
	}
}

func TestAppendAndList(t *testing.T) {
	ledger, err := NewLedger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()
	runID := core.RunID(core.NewID())

	first := testRecord(runID, 1)
	second := testRecord(runID, 2)
	second.CreatedAt = core.NewTimestamp(first.CreatedAt.Time().Add(time.Second))

	if err := ledger.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := ledger.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := ledger.List(ctx, runID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Settings.Seed != 1 || records[1].Settings.Seed != 2 {
		t.Error("records not ordered by creation time")
	}
	if records[0].Result.PValue == nil || *records[0].Result.PValue != 0.02 {
		t.Error("record round trip lost the p-value")
	}
}

func TestAppendRefusesDuplicates(t *testing.T) {
	ledger, err := NewLedger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()

	rec := testRecord(core.RunID(core.NewID()), 1)
	if err := ledger.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	err = ledger.Append(ctx, rec)
	if err == nil {
		t.Fatal("appending the same record twice must conflict")
	}
	if errors.GetCode(err) != errors.CodeLedgerConflict {
		t.Errorf("error code = %s, want LEDGER_CONFLICT", errors.GetCode(err))
	}
}

func TestListUnknownRun(t *testing.T) {
	ledger, err := NewLedger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	records, err := ledger.List(context.Background(), core.RunID("missing"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want none", len(records))
	}
}

func TestWriteSummary(t *testing.T) {
	ledger, err := NewLedger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ctx := context.Background()
	runID := core.RunID(core.NewID())

	summary := run.Summary{
		RunID:      runID,
		FDRLevel:   0.05,
		StrictMode: true,
		TotalCells: 4,
		CreatedAt:  core.Now(),
	}
	if err := ledger.WriteSummary(ctx, summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	// A recomputed summary may be rewritten; only cell records are append-only.
	summary.TotalCells = 5
	if err := ledger.WriteSummary(ctx, summary); err != nil {
		t.Fatalf("rewrite summary: %v", err)
	}

	// The summary file must not surface as a cell record.
	records, err := ledger.List(ctx, runID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("summary leaked into the record listing: %d entries", len(records))
	}
}
