package stats

// Significance is the closed classification of a periodicity test outcome.
// Invalid is terminal and mutually exclusive with having a p-value.
type Significance string

const (
	SignificanceNull      Significance = "null"
	SignificanceCandidate Significance = "candidate"
	SignificanceStrong    Significance = "strong"
	SignificanceInvalid   Significance = "invalid"
)

// NullModelKind selects how null-hypothesis sequences are constructed.
type NullModelKind string

const (
	// NullPhaseShuffle randomizes the phases of the residual sequence's
	// frequency-domain representation while preserving its amplitude spectrum.
	NullPhaseShuffle NullModelKind = "phase-shuffle"
	// NullPhiRoll cyclically shifts the residual sequence by a random offset,
	// destroying alignment to any fixed period while preserving all other
	// structure.
	NullPhiRoll NullModelKind = "phi-roll"
)

// ParseNullModelKind validates a configured null model name.
func ParseNullModelKind(s string) (NullModelKind, bool) {
	switch NullModelKind(s) {
	case NullPhaseShuffle:
		return NullPhaseShuffle, true
	case NullPhiRoll:
		return NullPhiRoll, true
	}
	return "", false
}

// NullSample is one Monte Carlo draw's test statistic under the null
// hypothesis, carrying the RNG seed that produced it.
type NullSample struct {
	DrawIndex int     `json:"draw_index"`
	Statistic float64 `json:"statistic"`
	Seed      int64   `json:"seed"`
}

// NullDistributionSummary captures the shape of an empirical null
// distribution for audit records.
type NullDistributionSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
	Samples      int     `json:"samples"`
}

// InvalidReason names why a result was classified invalid.
type InvalidReason string

const (
	ReasonSanityCheckFailure   InvalidReason = "sanity_check_failure"
	ReasonUnitResolutionFailed InvalidReason = "unit_resolution_failed"
	ReasonComputeTimeout       InvalidReason = "compute_timeout"
)

// TestResult is the outcome of one candidate-period test. PValue and ZScore
// are nil exactly when Significance is SignificanceInvalid.
type TestResult struct {
	Period            int           `json:"period"`
	ObservedStatistic float64       `json:"observed_statistic"`
	PValue            *float64      `json:"p_value"`
	ZScore            *float64      `json:"z_score"`
	// ZTailP is the normal-approximation tail probability implied by ZScore.
	// Cross-check only; classification uses the empirical PValue.
	ZTailP        *float64                `json:"z_tail_p,omitempty"`
	Significance  Significance            `json:"significance"`
	InvalidReason InvalidReason           `json:"invalid_reason,omitempty"`
	Null          NullDistributionSummary `json:"null_distribution"`
}

// Invalid builds the terminal invalid result for a period. It carries no
// p-value by construction.
func Invalid(period int, reason InvalidReason) TestResult {
	return TestResult{
		Period:        period,
		Significance:  SignificanceInvalid,
		InvalidReason: reason,
	}
}

// Positive reports whether the result claims a detection. A positive result
// is only legal downstream of a passed sanity verdict.
func (r TestResult) Positive() bool {
	return r.Significance == SignificanceCandidate || r.Significance == SignificanceStrong
}

// FDRCorrectedResult is a TestResult plus its Benjamini-Hochberg q-value and
// the decision at the chosen false-discovery-rate level.
type FDRCorrectedResult struct {
	TestResult
	QValue   float64 `json:"q_value"`
	Rejected bool    `json:"rejected"` // null hypothesis rejected at the FDR level
}
