package spectrum

// ResolutionMethod records how a spectrum's units were decided.
type ResolutionMethod string

const (
	MethodHeaderKeyword      ResolutionMethod = "header-keyword"
	MethodMagnitudeHeuristic ResolutionMethod = "magnitude-heuristic"
	MethodChi2Precheck       ResolutionMethod = "chi2-precheck"
	MethodUndecided          ResolutionMethod = "undecided"
)

// UnitResolution is the provenance of a unit decision. When the chi2 precheck
// ran, both candidate chi2/dof values are retained so a failed resolution can
// be audited without re-running the comparison.
type UnitResolution struct {
	Units  Units            `json:"units"`
	Method ResolutionMethod `json:"method"`

	// Failed is set when the precheck found both interpretations catastrophic.
	// A failed resolution is terminal for the affected cell regardless of mode.
	Failed bool `json:"failed"`

	Chi2PerDofAsCl *float64 `json:"chi2_per_dof_as_cl,omitempty"`
	Chi2PerDofAsDl *float64 `json:"chi2_per_dof_as_dl,omitempty"`
}

// Resolved reports whether the resolution produced a usable unit tag.
func (r UnitResolution) Resolved() bool {
	return !r.Failed && r.Units != UnitsUnknown
}
