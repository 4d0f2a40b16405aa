package units

import (
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"periodscan/domain/spectrum"
)

// HeuristicThresholds are the magnitude cutoffs for the fallback classifier.
// They are empirical tuning values (CMB spectra in uK^2), surfaced here so a
// run can override and log them instead of treating them as physical constants.
type HeuristicThresholds struct {
	// LowEllCutoff excludes low multipoles, where known anomalies distort the
	// magnitude statistics.
	LowEllCutoff int

	// Dl classification: median above DlMedian OR 90th percentile above DlP90.
	DlMedian float64
	DlP90    float64

	// Cl classification: median below ClMedian AND 90th percentile below ClP90.
	ClMedian float64
	ClP90    float64

	// LegacyMagnitude is the single-threshold tie-break used when the two-sided
	// classification is indecisive.
	LegacyMagnitude float64
}

// DefaultHeuristic returns the documented default cutoffs.
func DefaultHeuristic() HeuristicThresholds {
	return HeuristicThresholds{
		LowEllCutoff:    30,
		DlMedian:        50,
		DlP90:           200,
		ClMedian:        5,
		ClP90:           20,
		LegacyMagnitude: 100,
	}
}

// Resolve classifies a raw spectrum's units. Two ordered stages: an
// affirmative header-keyword match short-circuits; otherwise the magnitude
// heuristic decides; otherwise the result is Unknown. Pure function: malformed
// headers, non-numeric values and empty arrays yield Unknown, never a panic.
// The chi2 precheck against a second spectrum lives in the residual package.
func Resolve(header string, points []spectrum.Point, th HeuristicThresholds) spectrum.UnitResolution {
	if u, ok := scanHeader(header); ok {
		return spectrum.UnitResolution{Units: u, Method: spectrum.MethodHeaderKeyword}
	}
	if u, ok := magnitudeHeuristic(points, th); ok {
		return spectrum.UnitResolution{Units: u, Method: spectrum.MethodMagnitudeHeuristic}
	}
	return spectrum.UnitResolution{Units: spectrum.UnitsUnknown, Method: spectrum.MethodUndecided}
}

// scanHeader looks for affirmative unit keywords in the header text. Error
// column labels ("+dDl", "-dCl", "dDl" and friends) declare an uncertainty
// column, not units, and are skipped. A header naming both units is ambiguous
// and falls through to the heuristic.
func scanHeader(header string) (spectrum.Units, bool) {
	sawDl := false
	sawCl := false
	for _, tok := range strings.FieldsFunc(header, isSeparator) {
		t := strings.ToLower(strings.TrimLeft(tok, "+-"))
		t = strings.ReplaceAll(t, "_", "")
		switch t {
		case "dl", "dell":
			sawDl = true
		case "cl", "cell":
			sawCl = true
		case "ddl", "ddell", "dcl", "dcell":
			// uncertainty column marker, not a unit declaration
		}
	}
	if sawDl && !sawCl {
		return spectrum.UnitsDl, true
	}
	if sawCl && !sawDl {
		return spectrum.UnitsCl, true
	}
	return spectrum.UnitsUnknown, false
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', ',', ';', '#', '(', ')', '[', ']', '\n', '\r':
		return true
	}
	return false
}

// magnitudeHeuristic classifies by the absolute magnitude of values above the
// low-l cutoff. CMB Dl spectra sit in the thousands of uK^2 there while Cl
// values are orders of magnitude smaller.
func magnitudeHeuristic(points []spectrum.Point, th HeuristicThresholds) (spectrum.Units, bool) {
	var abs []float64
	for _, p := range points {
		if p.Ell <= th.LowEllCutoff {
			continue
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		abs = append(abs, math.Abs(p.Value))
	}
	if len(abs) == 0 {
		return spectrum.UnitsUnknown, false
	}

	median, err := stats.Median(abs)
	if err != nil {
		return spectrum.UnitsUnknown, false
	}
	p90, err := stats.Percentile(abs, 90)
	if err != nil {
		return spectrum.UnitsUnknown, false
	}

	if median > th.DlMedian || p90 > th.DlP90 {
		return spectrum.UnitsDl, true
	}
	if median < th.ClMedian && p90 < th.ClP90 {
		return spectrum.UnitsCl, true
	}

	// Tie-break on the legacy single threshold.
	if median > th.LegacyMagnitude {
		return spectrum.UnitsDl, true
	}
	if p90 < th.LegacyMagnitude {
		return spectrum.UnitsCl, true
	}
	return spectrum.UnitsUnknown, false
}
