// Package postgres implements the run ledger on PostgreSQL. Cell records and
// summaries are stored as JSONB payloads alongside the queryable columns, so
// the full record survives schema drift in the computed fields.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/internal/errors"
	"periodscan/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_records (
	run_id      TEXT NOT NULL,
	cell_id     TEXT NOT NULL,
	cell_key    TEXT NOT NULL,
	control     TEXT NOT NULL DEFAULT '',
	significance TEXT NOT NULL,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, cell_key, cell_id)
);

CREATE TABLE IF NOT EXISTS run_summaries (
	run_id     TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// Ledger is the PostgreSQL-backed RunLedger implementation.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger connects to the database and ensures the ledger tables exist.
func NewLedger(databaseURL string) (ports.RunLedger, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.WrapCode(errors.CodeDatabaseError, err, "failed to connect to postgres")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.WrapCode(errors.CodeDatabaseError, err, "failed to ensure ledger schema")
	}
	return &Ledger{db: db}, nil
}

// Append inserts one cell record. Records are append-only: a duplicate key is
// reported as a conflict, never overwritten.
func (l *Ledger) Append(ctx context.Context, record run.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode run record")
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO run_records (run_id, cell_id, cell_key, control, significance, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.RunID, record.CellID, record.Settings.Key(), string(record.Control),
		string(record.Result.Significance), payload, record.CreatedAt.Time())
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errors.LedgerConflict("record already exists for cell " + record.Settings.Key())
		}
		return errors.WrapCode(errors.CodeDatabaseError, err, "failed to append run record")
	}
	return nil
}

// List returns every cell record for a run, ordered by creation time.
func (l *Ledger) List(ctx context.Context, runID core.RunID) ([]run.Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT payload FROM run_records
		WHERE run_id = $1
		ORDER BY created_at ASC, cell_key ASC`, runID)
	if err != nil {
		return nil, errors.WrapCode(errors.CodeDatabaseError, err, "failed to list run records")
	}
	defer rows.Close()

	var records []run.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WrapCode(errors.CodeDatabaseError, err, "failed to scan run record")
		}
		var rec run.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "failed to decode run record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// WriteSummary upserts the aggregated summary for a run. Unlike cell records
// the summary is recomputable, so rewriting it is safe.
func (l *Ledger) WriteSummary(ctx context.Context, summary run.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "failed to encode run summary")
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO run_summaries (run_id, payload, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`,
		summary.RunID, payload, summary.CreatedAt.Time())
	if err != nil {
		return errors.WrapCode(errors.CodeDatabaseError, err, "failed to write run summary")
	}
	return nil
}

// Summary fetches the stored summary for a run.
func (l *Ledger) Summary(ctx context.Context, runID core.RunID) (run.Summary, error) {
	var payload []byte
	err := l.db.QueryRowContext(ctx, `
		SELECT payload FROM run_summaries WHERE run_id = $1`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return run.Summary{}, errors.InvalidInput("no summary for run " + runID.String())
	}
	if err != nil {
		return run.Summary{}, errors.WrapCode(errors.CodeDatabaseError, err, "failed to read run summary")
	}
	var summary run.Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return run.Summary{}, errors.Wrap(err, "failed to decode run summary")
	}
	return summary, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
