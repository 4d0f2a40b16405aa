package residual

// Set holds per-multipole residuals between an observation and a model on
// their common l-range, in common (Cl) units, plus the aggregate statistics
// the validity gate decides on. It is a derived value: recompute it whenever
// either input spectrum changes.
type Set struct {
	Ells       []int     `json:"ells"`
	Residuals  []float64 `json:"residuals"`  // obs - model
	Normalized []float64 `json:"normalized"` // residual / sigma, only where sigma > 0

	Chi2PerDof          float64 `json:"chi2_per_dof"`
	MedianAbsNormalized float64 `json:"median_abs_normalized"`
	Dof                 int     `json:"dof"`

	// Defects surfaced for the gate. They are recorded here, never raised:
	// the gate is the single decision point.
	NonPositiveSigmaCount int `json:"non_positive_sigma_count"`
}

// Empty reports whether alignment produced a zero-length range.
func (s Set) Empty() bool { return len(s.Ells) == 0 }
