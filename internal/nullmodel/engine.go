package nullmodel

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"

	"periodscan/domain/stats"
	"periodscan/ports"
)

// Engine generates empirical null distributions of the periodicity statistic.
// Draws are embarrassingly parallel: each owns a seeded RNG derived from the
// base seed and its draw index, shares only the read-only input sequence, and
// writes its sample into its own slot. The returned slice is ordered by draw
// index; no downstream statistic may depend on completion order.
type Engine struct {
	rng     ports.RNG
	workers int
}

// NewEngine creates an engine with a bounded worker pool. workers <= 0 uses
// GOMAXPROCS.
func NewEngine(rng ports.RNG, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{rng: rng, workers: workers}
}

// Generate draws n null samples of the test statistic for one candidate
// period. The caller must have passed the validity gate; this engine performs
// no sanity checks of its own by contract.
func (e *Engine) Generate(ctx context.Context, ells []int, values []float64, period int, kind stats.NullModelKind, n int, baseSeed int64) ([]stats.NullSample, error) {
	if len(values) < 4 {
		return nil, fmt.Errorf("null generation needs at least 4 residuals, got %d", len(values))
	}
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}

	samples := make([]stats.NullSample, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			seed := e.rng.DrawSeed(baseSeed, i)
			draw := e.rng.Stream(string(kind), seed)

			var surrogate []float64
			switch kind {
			case stats.NullPhaseShuffle:
				surrogate = phaseShuffle(values, draw)
			case stats.NullPhiRoll:
				surrogate = phiRoll(values, draw)
			default:
				return fmt.Errorf("unknown null model %q", kind)
			}

			samples[i] = stats.NullSample{
				DrawIndex: i,
				Statistic: PeriodPower(ells, surrogate, period),
				Seed:      seed,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

// phaseShuffle randomizes the phases of the sequence's Fourier coefficients
// while preserving the amplitude spectrum, then transforms back. The DC bin
// keeps its phase; for even lengths the Nyquist bin must stay real.
func phaseShuffle(values []float64, draw *rand.Rand) []float64 {
	n := len(values)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, values)

	last := len(coeffs) - 1
	for k := 1; k < len(coeffs); k++ {
		if n%2 == 0 && k == last {
			continue
		}
		mag := cmplxAbs(coeffs[k])
		phase := draw.Float64() * 2 * math.Pi
		coeffs[k] = complex(mag*math.Cos(phase), mag*math.Sin(phase))
	}

	out := fft.Sequence(nil, coeffs)
	// gonum's transform is unnormalized: a round trip scales by n.
	for i := range out {
		out[i] /= float64(n)
	}
	return out
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// phiRoll cyclically shifts the sequence by a random non-zero offset,
// destroying alignment to any fixed period while preserving all other
// structure.
func phiRoll(values []float64, draw *rand.Rand) []float64 {
	n := len(values)
	offset := 1 + draw.Intn(n-1)
	out := make([]float64, n)
	for i := range values {
		out[i] = values[(i+offset)%n]
	}
	return out
}
