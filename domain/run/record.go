package run

import (
	"fmt"

	"periodscan/domain/core"
	"periodscan/domain/spectrum"
	"periodscan/domain/stats"
	"periodscan/domain/verdict"
)

// ControlKind tags self-test cells. Real-data cells carry ControlNone.
type ControlKind string

const (
	ControlNone     ControlKind = ""
	ControlNegative ControlKind = "negative"
	ControlPositive ControlKind = "positive"
)

// CellSettings is the configuration slice that produced one grid cell.
type CellSettings struct {
	WindowSize       int                 `json:"window_size"`
	TargetResolution int                 `json:"target_resolution"`
	NullModel        stats.NullModelKind `json:"null_model"`
	MCSamples        int                 `json:"mc_samples"`
	Seed             int64               `json:"seed"`
	Period           int                 `json:"period"`
}

// Key returns a stable human-readable identifier for the cell, used for
// record file names and log lines.
func (c CellSettings) Key() string {
	return fmt.Sprintf("w%d_r%d_%s_n%d_s%d_p%d",
		c.WindowSize, c.TargetResolution, c.NullModel, c.MCSamples, c.Seed, c.Period)
}

// Record is the append-only per-cell output of a grid run. One record is
// written per executed configuration and never overwritten; a crash leaves a
// record either fully written or absent.
type Record struct {
	RunID  core.RunID  `json:"run_id"`
	CellID core.CellID `json:"cell_id"`

	Settings CellSettings `json:"settings"`
	Control  ControlKind  `json:"control,omitempty"`

	ObsUnits           spectrum.Units          `json:"obs_units"`
	ModelUnitsOriginal spectrum.Units          `json:"model_units_original"`
	ModelUnitsUsed     spectrum.Units          `json:"model_units_used"`
	UnitResolution     spectrum.UnitResolution `json:"unit_resolution"`

	Chi2PerDof                 float64 `json:"chi2_per_dof"`
	MedianAbsResidualOverSigma float64 `json:"median_abs_residual_over_sigma"`
	Dof                        int     `json:"dof"`

	StrictMode         bool                  `json:"strict_mode"`
	SanityChecksPassed bool                  `json:"sanity_checks_passed"`
	Sanity             verdict.SanityVerdict `json:"sanity"`

	Result stats.TestResult `json:"result"`

	// QValue is attached after Benjamini-Hochberg correction across the run's
	// non-invalid cells. Nil for invalid cells and before correction.
	QValue *float64 `json:"q_value,omitempty"`

	ConfigHash core.ConfigHash `json:"config_hash"`
	CreatedAt  core.Timestamp  `json:"created_at"`
}

// Summary is the aggregated artifact for one grid run: every cell plus the
// FDR decisions, consumed by external reporting collaborators.
type Summary struct {
	RunID      core.RunID                 `json:"run_id"`
	FDRLevel   float64                    `json:"fdr_level"`
	StrictMode bool                       `json:"strict_mode"`
	Cells      []Record                   `json:"cells"`
	Corrected  []stats.FDRCorrectedResult `json:"corrected"`

	TotalCells   int `json:"total_cells"`
	InvalidCells int `json:"invalid_cells"`
	Positives    int `json:"positives"` // candidate or strong, before correction
	FDRPositives int `json:"fdr_positives"`

	CreatedAt core.Timestamp `json:"created_at"`
}
