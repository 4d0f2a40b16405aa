// Package localfs persists grid run records as one JSON file per cell under
// the run's directory. Writes go through a temp file and an atomic rename, so
// a crash leaves a record either fully written or absent, and an aborted run
// never corrupts records persisted before the abort.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/internal/errors"
)

// Ledger is the file-backed RunLedger implementation.
type Ledger struct {
	basePath string
}

// NewLedger creates a ledger rooted at basePath.
func NewLedger(basePath string) (*Ledger, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create ledger directory %s", basePath)
	}
	return &Ledger{basePath: basePath}, nil
}

// Append writes one cell record. An existing record for the cell is a
// conflict: records are append-only and never overwritten.
func (l *Ledger) Append(ctx context.Context, record run.Record) error {
	dir := l.runDir(record.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create run directory %s", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("cell_%s_%s.json", record.Settings.Key(), record.CellID))
	if _, err := os.Stat(path); err == nil {
		return errors.LedgerConflict("record already exists: " + path)
	}

	return l.writeAtomic(path, record)
}

// List returns every cell record for a run, ordered by creation time.
func (l *Ledger) List(ctx context.Context, runID core.RunID) ([]run.Record, error) {
	dir := l.runDir(runID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read run directory %s", dir)
	}

	var records []run.Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "cell_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read record %s", e.Name())
		}
		var rec run.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrapf(err, "failed to decode record %s", e.Name())
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].CreatedAt.Before(records[b].CreatedAt)
	})
	return records, nil
}

// WriteSummary persists the aggregated summary artifact for a run.
func (l *Ledger) WriteSummary(ctx context.Context, summary run.Summary) error {
	dir := l.runDir(summary.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create run directory %s", dir)
	}
	return l.writeAtomic(filepath.Join(dir, "summary.json"), summary)
}

// writeAtomic serializes v and renames it into place.
func (l *Ledger) writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write record")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to flush record")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to finalize record")
	}
	return nil
}

func (l *Ledger) runDir(runID core.RunID) string {
	return filepath.Join(l.basePath, runID.String())
}
