package fdr

import (
	"math"
	"testing"

	"periodscan/domain/stats"
)

func resultWithP(period int, p float64) stats.TestResult {
	sig := stats.SignificanceCandidate
	if p > 0.05 {
		sig = stats.SignificanceNull
	}
	return stats.TestResult{Period: period, PValue: &p, Significance: sig}
}

func TestCorrectKnownExample(t *testing.T) {
	// p = {0.01, 0.02, 0.03, 0.04}: q_i = p_i * 4 / rank_i before monotonicity.
	results := []stats.TestResult{
		resultWithP(2, 0.01),
		resultWithP(3, 0.02),
		resultWithP(4, 0.03),
		resultWithP(5, 0.04),
	}

	corrected, err := Correct(results, 0.05)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	want := []float64{0.04, 0.04, 0.04, 0.04}
	for i, c := range corrected {
		if math.Abs(c.QValue-want[i]) > 1e-12 {
			t.Errorf("q[%d] = %g, want %g", i, c.QValue, want[i])
		}
		if !c.Rejected {
			t.Errorf("result %d should be rejected at level 0.05", i)
		}
	}
}

func TestCorrectPreservesInputOrder(t *testing.T) {
	results := []stats.TestResult{
		resultWithP(7, 0.9),
		resultWithP(3, 0.001),
		resultWithP(5, 0.2),
	}

	corrected, err := Correct(results, 0.05)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	for i, c := range corrected {
		if c.Period != results[i].Period {
			t.Errorf("position %d: period %d, want %d (input order must be preserved)", i, c.Period, results[i].Period)
		}
	}
	if !corrected[1].Rejected {
		t.Error("the smallest p-value should be rejected")
	}
	if corrected[0].Rejected {
		t.Error("p=0.9 must not be rejected")
	}
}

func TestCorrectMonotonicity(t *testing.T) {
	// p-values chosen so raw q = p*m/rank is non-monotone without the fixup.
	ps := []float64{0.010, 0.011, 0.30, 0.50, 0.90}
	results := make([]stats.TestResult, len(ps))
	for i, p := range ps {
		results[i] = resultWithP(i+2, p)
	}

	corrected, err := Correct(results, 0.05)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	// Inputs are already p-sorted here, so q must be non-decreasing in place.
	for i := 1; i < len(corrected); i++ {
		if corrected[i].QValue < corrected[i-1].QValue {
			t.Errorf("q[%d]=%g < q[%d]=%g: monotonicity violated",
				i, corrected[i].QValue, i-1, corrected[i-1].QValue)
		}
	}
	// q for the top pair: raw q1 = 0.010*5/1 = 0.05, raw q2 = 0.011*5/2 = 0.0275,
	// so q1 is pulled down to 0.0275.
	if math.Abs(corrected[0].QValue-0.0275) > 1e-12 {
		t.Errorf("q[0] = %g, want 0.0275 after monotonicity enforcement", corrected[0].QValue)
	}
}

func TestCorrectClampsToOne(t *testing.T) {
	results := []stats.TestResult{
		resultWithP(2, 0.99),
		resultWithP(3, 0.98),
	}
	corrected, err := Correct(results, 0.05)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	for i, c := range corrected {
		if c.QValue > 1 {
			t.Errorf("q[%d] = %g, must never exceed 1", i, c.QValue)
		}
	}
}

func TestCorrectRejectsInvalidInputs(t *testing.T) {
	valid := resultWithP(2, 0.01)

	t.Run("invalid result in batch", func(t *testing.T) {
		batch := []stats.TestResult{valid, stats.Invalid(3, stats.ReasonSanityCheckFailure)}
		if _, err := Correct(batch, 0.05); err == nil {
			t.Error("expected error for invalid result in batch")
		}
	})

	t.Run("missing p-value", func(t *testing.T) {
		batch := []stats.TestResult{valid, {Period: 3, Significance: stats.SignificanceNull}}
		if _, err := Correct(batch, 0.05); err == nil {
			t.Error("expected error for missing p-value")
		}
	})

	t.Run("bad level", func(t *testing.T) {
		for _, level := range []float64{0, 1, -0.1, 1.5} {
			if _, err := Correct([]stats.TestResult{valid}, level); err == nil {
				t.Errorf("expected error for level %g", level)
			}
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		corrected, err := Correct(nil, 0.05)
		if err != nil {
			t.Fatalf("empty batch: %v", err)
		}
		if corrected != nil {
			t.Error("empty batch should yield no corrections")
		}
	})
}

func TestCorrectDeterminism(t *testing.T) {
	results := []stats.TestResult{
		resultWithP(2, 0.03),
		resultWithP(3, 0.03), // tied p-values
		resultWithP(4, 0.01),
	}

	a, err := Correct(results, 0.05)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	b, err := Correct(results, 0.05)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	for i := range a {
		if a[i].QValue != b[i].QValue || a[i].Rejected != b[i].Rejected {
			t.Fatalf("correction not deterministic at index %d", i)
		}
	}
}
