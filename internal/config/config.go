package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"periodscan/domain/run"
	"periodscan/domain/stats"
	"periodscan/internal/errors"
)

// Default thresholds. These are empirically tuned, not derived; they are
// surfaced as overridable configuration and logged on every run.
const (
	DefaultFDRLevel                    = 0.05
	DefaultCatastrophicChi2Threshold   = 1e6
	DefaultCatastrophicMedianThreshold = 1e4
	DefaultCellTimeoutSeconds          = 120
)

// Grid is the validated configuration for one parameter-grid run. The set of
// recognized options is closed: unknown keys in the config file are a
// validation error, not ignored.
type Grid struct {
	WindowSizes       []int    `json:"window_sizes"`
	TargetResolutions []int    `json:"target_resolutions"`
	NullModels        []string `json:"null_models"`
	MCSamples         []int    `json:"mc_samples"`
	Seeds             []int64  `json:"seeds"`
	CandidatePeriods  []int    `json:"candidate_periods"`

	StrictMode *bool   `json:"strict_mode,omitempty"` // default true
	FDRLevel   float64 `json:"fdr_level,omitempty"`

	CatastrophicChi2Threshold   float64 `json:"catastrophic_chi2_threshold,omitempty"`
	CatastrophicMedianThreshold float64 `json:"catastrophic_median_threshold,omitempty"`

	CellTimeoutSeconds int  `json:"cell_timeout_seconds,omitempty"`
	Interpolate        bool `json:"interpolate,omitempty"`

	// PreregistrationPath points at the Markdown pre-registration artifact
	// carrying significance thresholds. Empty means the built-in document.
	PreregistrationPath string `json:"preregistration_path,omitempty"`

	// Workers bounds concurrent Monte Carlo draws and grid cells. Zero means
	// GOMAXPROCS-determined default in the engine.
	Workers int `json:"workers,omitempty"`
}

// Strict reports the effective strict-mode setting (default true).
func (g *Grid) Strict() bool {
	if g.StrictMode == nil {
		return true
	}
	return *g.StrictMode
}

// CellTimeout returns the per-cell wall-clock budget.
func (g *Grid) CellTimeout() time.Duration {
	return time.Duration(g.CellTimeoutSeconds) * time.Second
}

// Load reads and validates a grid definition from a JSON file.
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open grid config %s", path)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	grid := &Grid{}
	if err := dec.Decode(grid); err != nil {
		return nil, errors.ConfigInvalid("grid config is not valid JSON or contains unknown keys: " + err.Error())
	}

	grid.applyDefaults()
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return grid, nil
}

// applyDefaults fills unset options with documented defaults and env
// overrides, keeping every heuristic threshold explicit and overridable.
func (g *Grid) applyDefaults() {
	if g.FDRLevel == 0 {
		g.FDRLevel = getEnvFloatOrDefault("FDR_LEVEL", DefaultFDRLevel)
	}
	if g.CatastrophicChi2Threshold == 0 {
		g.CatastrophicChi2Threshold = getEnvFloatOrDefault("CATASTROPHIC_CHI2_THRESHOLD", DefaultCatastrophicChi2Threshold)
	}
	if g.CatastrophicMedianThreshold == 0 {
		g.CatastrophicMedianThreshold = getEnvFloatOrDefault("CATASTROPHIC_MEDIAN_THRESHOLD", DefaultCatastrophicMedianThreshold)
	}
	if g.CellTimeoutSeconds == 0 {
		g.CellTimeoutSeconds = getEnvIntOrDefault("CELL_TIMEOUT_SECONDS", DefaultCellTimeoutSeconds)
	}
	if g.PreregistrationPath == "" {
		g.PreregistrationPath = getEnvOrDefault("PREREGISTRATION_PATH", "")
	}
}

// Validate checks every recognized option. All failures carry the
// CONFIG_INVALID code: a misconfigured grid is fatal regardless of mode.
func (g *Grid) Validate() error {
	if len(g.WindowSizes) == 0 {
		return errors.ConfigInvalid("window_sizes must not be empty")
	}
	for _, w := range g.WindowSizes {
		if w < 8 {
			return errors.ConfigInvalid("window_sizes entries must be >= 8, got " + strconv.Itoa(w))
		}
	}
	if len(g.TargetResolutions) == 0 {
		return errors.ConfigInvalid("target_resolutions must not be empty")
	}
	for _, r := range g.TargetResolutions {
		if r < 0 {
			return errors.ConfigInvalid("target_resolutions entries must be >= 0 (0 disables rebinning)")
		}
	}
	if len(g.NullModels) == 0 {
		return errors.ConfigInvalid("null_models must not be empty")
	}
	for _, m := range g.NullModels {
		if _, ok := stats.ParseNullModelKind(m); !ok {
			return errors.ConfigInvalid("unknown null model " + strconv.Quote(m))
		}
	}
	if len(g.MCSamples) == 0 {
		return errors.ConfigInvalid("mc_samples must not be empty")
	}
	for _, n := range g.MCSamples {
		if n <= 0 {
			return errors.ConfigInvalid("mc_samples entries must be positive, got " + strconv.Itoa(n))
		}
	}
	if len(g.Seeds) == 0 {
		return errors.ConfigInvalid("seeds must not be empty")
	}
	if len(g.CandidatePeriods) == 0 {
		return errors.ConfigInvalid("candidate_periods must not be empty")
	}
	for _, p := range g.CandidatePeriods {
		if p < 2 {
			return errors.ConfigInvalid("candidate_periods entries must be >= 2, got " + strconv.Itoa(p))
		}
	}
	if g.FDRLevel <= 0 || g.FDRLevel >= 1 {
		return errors.ConfigInvalid("fdr_level must be in (0, 1)")
	}
	if g.CatastrophicChi2Threshold <= 0 {
		return errors.ConfigInvalid("catastrophic_chi2_threshold must be positive")
	}
	if g.CatastrophicMedianThreshold <= 0 {
		return errors.ConfigInvalid("catastrophic_median_threshold must be positive")
	}
	if g.CellTimeoutSeconds <= 0 {
		return errors.ConfigInvalid("cell_timeout_seconds must be positive")
	}
	if g.Workers < 0 {
		return errors.ConfigInvalid("workers must be >= 0")
	}
	return nil
}

// Cells enumerates the full configuration grid in a deterministic order.
func (g *Grid) Cells() []run.CellSettings {
	var cells []run.CellSettings
	for _, w := range g.WindowSizes {
		for _, r := range g.TargetResolutions {
			for _, m := range g.NullModels {
				kind, _ := stats.ParseNullModelKind(m)
				for _, n := range g.MCSamples {
					for _, s := range g.Seeds {
						for _, p := range g.CandidatePeriods {
							cells = append(cells, run.CellSettings{
								WindowSize:       w,
								TargetResolution: r,
								NullModel:        kind,
								MCSamples:        n,
								Seed:             s,
								Period:           p,
							})
						}
					}
				}
			}
		}
	}
	return cells
}

// Fingerprint returns the option map used to hash a run's configuration.
func (g *Grid) Fingerprint() map[string]interface{} {
	return map[string]interface{}{
		"window_sizes":                  g.WindowSizes,
		"target_resolutions":            g.TargetResolutions,
		"null_models":                   g.NullModels,
		"mc_samples":                    g.MCSamples,
		"seeds":                         g.Seeds,
		"candidate_periods":             g.CandidatePeriods,
		"strict_mode":                   g.Strict(),
		"fdr_level":                     g.FDRLevel,
		"catastrophic_chi2_threshold":   g.CatastrophicChi2Threshold,
		"catastrophic_median_threshold": g.CatastrophicMedianThreshold,
		"cell_timeout_seconds":          g.CellTimeoutSeconds,
		"interpolate":                   g.Interpolate,
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
