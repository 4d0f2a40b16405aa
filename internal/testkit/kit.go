// Package testkit provides synthetic spectra and fixtures shared by tests and
// by the grid runner's control cells.
package testkit

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"periodscan/domain/core"
	"periodscan/domain/run"
	"periodscan/domain/spectrum"
	"periodscan/internal/errors"
)

// NoiseSpec parameterizes a synthetic spectrum.
type NoiseSpec struct {
	MinEll int
	MaxEll int
	Level  float64 // baseline value scale
	Sigma  float64 // per-multipole uncertainty
	Seed   int64
}

// WhiteNoiseSpectrum builds a spectrum whose values are the baseline plus
// Gaussian noise of the reported sigma. Used as the negative control: it must
// not contain periodic structure beyond chance.
func WhiteNoiseSpectrum(role spectrum.Role, units spectrum.Units, spec NoiseSpec) spectrum.Spectrum {
	rng := rand.New(rand.NewSource(spec.Seed))
	s := spectrum.Spectrum{Role: role, Units: units}
	for ell := spec.MinEll; ell <= spec.MaxEll; ell++ {
		s.Points = append(s.Points, spectrum.Point{
			Ell:   ell,
			Value: spec.Level + rng.NormFloat64()*spec.Sigma,
			Sigma: spec.Sigma,
		})
	}
	return s
}

// FlatModelSpectrum builds a noiseless model at the baseline level on the
// same multipole range.
func FlatModelSpectrum(units spectrum.Units, spec NoiseSpec) spectrum.Spectrum {
	s := spectrum.Spectrum{Role: spectrum.RoleModel, Units: units}
	for ell := spec.MinEll; ell <= spec.MaxEll; ell++ {
		s.Points = append(s.Points, spectrum.Point{Ell: ell, Value: spec.Level, Sigma: 0})
	}
	return s
}

// PeriodicSpectrum builds an observation whose residual against the flat
// model is a sinusoid of the given period plus noise. Used as the positive
// control.
func PeriodicSpectrum(units spectrum.Units, spec NoiseSpec, period int, amplitude float64) spectrum.Spectrum {
	rng := rand.New(rand.NewSource(spec.Seed))
	s := spectrum.Spectrum{Role: spectrum.RoleObservation, Units: units}
	for ell := spec.MinEll; ell <= spec.MaxEll; ell++ {
		signal := amplitude * math.Sin(2*math.Pi*float64(ell)/float64(period))
		s.Points = append(s.Points, spectrum.Point{
			Ell:   ell,
			Value: spec.Level + signal + rng.NormFloat64()*spec.Sigma,
			Sigma: spec.Sigma,
		})
	}
	return s
}

// DlScaled converts a Cl-magnitude spectrum to Dl values without retagging
// it, reproducing the classic "file left in the wrong scale" defect.
func DlScaled(s spectrum.Spectrum) spectrum.Spectrum {
	out := spectrum.Spectrum{Role: s.Role, Units: s.Units, Header: s.Header}
	for _, p := range s.Points {
		out.Points = append(out.Points, spectrum.Point{
			Ell:   p.Ell,
			Value: spectrum.ClToDl(p.Ell, p.Value),
			Sigma: spectrum.ClToDl(p.Ell, p.Sigma),
		})
	}
	return out
}

// InMemoryLedger implements ports.RunLedger for tests and controls.
type InMemoryLedger struct {
	mu        sync.Mutex
	records   map[core.CellID]run.Record
	order     []core.CellID
	summaries map[core.RunID]run.Summary
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		records:   make(map[core.CellID]run.Record),
		summaries: make(map[core.RunID]run.Summary),
	}
}

// Append stores a record, refusing duplicates like a real append-only store.
func (l *InMemoryLedger) Append(ctx context.Context, record run.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[record.CellID]; exists {
		return errors.LedgerConflict("record already exists for cell " + record.CellID.String())
	}
	l.records[record.CellID] = record
	l.order = append(l.order, record.CellID)
	return nil
}

// List returns the run's records in append order.
func (l *InMemoryLedger) List(ctx context.Context, runID core.RunID) ([]run.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []run.Record
	for _, id := range l.order {
		if rec := l.records[id]; rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

// ListAll returns every stored record in append order, across runs.
func (l *InMemoryLedger) ListAll(ctx context.Context) ([]run.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]run.Record, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.records[id])
	}
	return out, nil
}

// WriteSummary stores the run summary.
func (l *InMemoryLedger) WriteSummary(ctx context.Context, summary run.Summary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries[summary.RunID] = summary
	return nil
}

// Summary returns a stored summary, if any.
func (l *InMemoryLedger) Summary(runID core.RunID) (run.Summary, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.summaries[runID]
	return s, ok
}
