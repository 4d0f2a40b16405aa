package ports

import (
	"context"

	"periodscan/domain/core"
	"periodscan/domain/run"
)

// RunLedger persists grid run records append-only. Implementations must be
// crash-only: Append either writes a complete record or nothing, and an
// existing record is never overwritten.
type RunLedger interface {
	// Append persists one cell record. Appending a record with a CellID that
	// already exists is an error.
	Append(ctx context.Context, record run.Record) error

	// List returns every record for a run, ordered by creation.
	List(ctx context.Context, runID core.RunID) ([]run.Record, error)

	// WriteSummary persists the aggregated run summary artifact.
	WriteSummary(ctx context.Context, summary run.Summary) error
}
