package verdict

// CheckName identifies one named sanity check evaluated by the validity gate.
type CheckName string

const (
	CheckChi2PerDof     CheckName = "chi2_per_dof"
	CheckMedianResidual CheckName = "median_abs_residual_over_sigma"
	CheckPositiveSigma  CheckName = "positive_sigma"
	CheckAlignedRange   CheckName = "aligned_range"
	CheckUnitResolution CheckName = "unit_resolution"
)

// Violation records a failed check together with the measured value and the
// threshold it broke, so the failure can be reproduced from the record alone.
type Violation struct {
	Check     CheckName `json:"check"`
	Measured  float64   `json:"measured"`
	Threshold float64   `json:"threshold"`
}

// SanityVerdict is the single authoritative pass/fail decision over a residual
// set. It is computed exactly once per residual set, before any Monte Carlo
// work: no code path may generate null samples from a failed verdict.
type SanityVerdict struct {
	Passed       bool        `json:"passed"`
	Catastrophic bool        `json:"catastrophic"`
	Violations   []Violation `json:"violations,omitempty"`
}

// Pass returns a clean verdict.
func Pass() SanityVerdict {
	return SanityVerdict{Passed: true}
}

// Fail returns a failed verdict carrying every violated check in evaluation
// order. All checks are always evaluated; the first failure never hides the
// rest.
func Fail(catastrophic bool, violations []Violation) SanityVerdict {
	return SanityVerdict{Passed: false, Catastrophic: catastrophic, Violations: violations}
}
