package nullmodel

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"periodscan/domain/stats"
	"periodscan/internal/rng"
)

func testSequence(n int, seed int64) ([]int, []float64) {
	src := rand.New(rand.NewSource(seed))
	ells := make([]int, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		ells[i] = 100 + i
		values[i] = src.NormFloat64()
	}
	return ells, values
}

func TestPeriodPowerDetectsCoherentSignal(t *testing.T) {
	period := 10
	ells := make([]int, 100)
	aligned := make([]float64, 100)
	for i := range ells {
		ells[i] = i
		aligned[i] = math.Sin(2 * math.Pi * float64(i) / float64(period))
	}

	atSignal := PeriodPower(ells, aligned, period)
	offSignal := PeriodPower(ells, aligned, 37)
	if atSignal <= offSignal {
		t.Errorf("power at the true period (%g) should exceed an unrelated period (%g)", atSignal, offSignal)
	}
}

func TestPeriodPowerDegenerateInputs(t *testing.T) {
	if got := PeriodPower(nil, nil, 10); got != 0 {
		t.Errorf("empty sequence: got %g, want 0", got)
	}
	if got := PeriodPower([]int{1, 2}, []float64{1, 1}, 1); got != 0 {
		t.Errorf("period < 2: got %g, want 0", got)
	}
	if got := PeriodPower([]int{1, 2}, []float64{0, 0}, 10); got != 0 {
		t.Errorf("all-zero sequence: got %g, want 0", got)
	}
}

func TestGenerateDeterminism(t *testing.T) {
	ells, values := testSequence(64, 1)
	engine := NewEngine(rng.New(), 4)
	ctx := context.Background()

	for _, kind := range []stats.NullModelKind{stats.NullPhaseShuffle, stats.NullPhiRoll} {
		t.Run(string(kind), func(t *testing.T) {
			a, err := engine.Generate(ctx, ells, values, 10, kind, 200, 42)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			b, err := engine.Generate(ctx, ells, values, 10, kind, 200, 42)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			for i := range a {
				if a[i].Statistic != b[i].Statistic || a[i].Seed != b[i].Seed {
					t.Fatalf("draw %d differs across identical runs", i)
				}
				if a[i].DrawIndex != i {
					t.Fatalf("draw %d stored index %d; samples must be draw-ordered", i, a[i].DrawIndex)
				}
			}
		})
	}
}

func TestGenerateSeedChangesDistribution(t *testing.T) {
	ells, values := testSequence(64, 1)
	engine := NewEngine(rng.New(), 4)
	ctx := context.Background()

	a, err := engine.Generate(ctx, ells, values, 10, stats.NullPhiRoll, 100, 42)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := engine.Generate(ctx, ells, values, 10, stats.NullPhiRoll, 100, 43)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	identical := true
	for i := range a {
		if a[i].Statistic != b[i].Statistic {
			identical = false
			break
		}
	}
	if identical {
		t.Error("different base seeds produced identical null distributions")
	}
}

func TestGenerateRejectsDegenerateInputs(t *testing.T) {
	engine := NewEngine(rng.New(), 1)
	ctx := context.Background()

	if _, err := engine.Generate(ctx, []int{1, 2, 3}, []float64{1, 2, 3}, 10, stats.NullPhiRoll, 10, 42); err == nil {
		t.Error("expected error for fewer than 4 residuals")
	}
	_, values := testSequence(16, 1)
	ells := make([]int, 16)
	for i := range ells {
		ells[i] = i
	}
	if _, err := engine.Generate(ctx, ells, values, 10, stats.NullPhiRoll, 0, 42); err == nil {
		t.Error("expected error for zero samples")
	}
	if _, err := engine.Generate(ctx, ells, values, 10, stats.NullModelKind("bogus"), 10, 42); err == nil {
		t.Error("expected error for unknown null model")
	}
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ells, values := testSequence(64, 1)
	engine := NewEngine(rng.New(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Generate(ctx, ells, values, 10, stats.NullPhaseShuffle, 1000, 42); err == nil {
		t.Error("expected error from a cancelled context")
	}
}

func TestPhaseShufflePreservesPower(t *testing.T) {
	_, values := testSequence(64, 7)
	draw := rand.New(rand.NewSource(99))

	surrogate := phaseShuffle(values, draw)
	if len(surrogate) != len(values) {
		t.Fatalf("surrogate length %d, want %d", len(surrogate), len(values))
	}

	var origPower, surrPower float64
	for i := range values {
		origPower += values[i] * values[i]
		surrPower += surrogate[i] * surrogate[i]
	}
	// Parseval: randomizing phases leaves the total power unchanged.
	if math.Abs(origPower-surrPower) > 1e-6*origPower {
		t.Errorf("total power changed: %g -> %g", origPower, surrPower)
	}

	same := true
	for i := range values {
		if surrogate[i] != values[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("phase shuffle returned the input unchanged")
	}
}

func TestPhiRollPreservesMultiset(t *testing.T) {
	_, values := testSequence(32, 7)
	draw := rand.New(rand.NewSource(99))

	surrogate := phiRoll(values, draw)

	origSorted := append([]float64(nil), values...)
	surrSorted := append([]float64(nil), surrogate...)
	sort.Float64s(origSorted)
	sort.Float64s(surrSorted)
	for i := range origSorted {
		if origSorted[i] != surrSorted[i] {
			t.Fatal("phi-roll must permute values, not alter them")
		}
	}

	same := true
	for i := range values {
		if surrogate[i] != values[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("phi-roll offset of zero is not allowed")
	}
}
