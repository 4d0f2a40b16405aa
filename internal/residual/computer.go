package residual

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"periodscan/domain/core"
	"periodscan/domain/residual"
	"periodscan/domain/spectrum"
)

// Options control alignment behavior. Interpolation is opt-in and explicit;
// it is never applied silently.
type Options struct {
	// Interpolate linearly resamples the model onto the observation's
	// multipole grid instead of intersecting the two grids.
	Interpolate bool
}

// Compute aligns an observation and a model onto a common l-range and common
// Cl units, then derives the residual set. Both spectra must carry resolved
// units; sigma always comes from the observation. Degenerate inputs
// (non-positive sigma, empty overlap) are recorded on the set and left for the
// validity gate to decide on.
func Compute(obs, model spectrum.Spectrum, opts Options) (residual.Set, error) {
	obsCl, err := obs.InUnits(spectrum.UnitsCl)
	if err != nil {
		return residual.Set{}, fmt.Errorf("observation: %w", err)
	}
	modelCl, err := model.InUnits(spectrum.UnitsCl)
	if err != nil {
		return residual.Set{}, fmt.Errorf("model: %w", err)
	}

	pairs := align(obsCl, modelCl, opts)

	set := residual.Set{
		Ells:       make([]int, 0, len(pairs)),
		Residuals:  make([]float64, 0, len(pairs)),
		Normalized: make([]float64, 0, len(pairs)),
	}

	var chi2 float64
	for _, p := range pairs {
		r := p.obs.Value - p.model
		set.Ells = append(set.Ells, p.obs.Ell)
		set.Residuals = append(set.Residuals, r)
		if p.obs.Sigma <= 0 || math.IsNaN(p.obs.Sigma) {
			set.NonPositiveSigmaCount++
			continue
		}
		n := r / p.obs.Sigma
		set.Normalized = append(set.Normalized, n)
		chi2 += n * n
	}

	set.Dof = len(set.Normalized)
	if set.Dof > 0 {
		set.Chi2PerDof = chi2 / float64(set.Dof)
		absNorm := make([]float64, set.Dof)
		for i, v := range set.Normalized {
			absNorm[i] = math.Abs(v)
		}
		med, err := stats.Median(absNorm)
		if err != nil {
			return residual.Set{}, fmt.Errorf("median of normalized residuals: %w", err)
		}
		set.MedianAbsNormalized = med
	}

	return set, nil
}

type alignedPair struct {
	obs   spectrum.Point
	model float64
}

// align intersects the two multipole grids, or resamples the model onto the
// observation grid when interpolation is enabled.
func align(obs, model spectrum.Spectrum, opts Options) []alignedPair {
	if opts.Interpolate {
		return interpolate(obs, model)
	}

	modelByEll := make(map[int]float64, model.Len())
	for _, p := range model.Points {
		modelByEll[p.Ell] = p.Value
	}

	var pairs []alignedPair
	for _, p := range obs.Points {
		if mv, ok := modelByEll[p.Ell]; ok {
			pairs = append(pairs, alignedPair{obs: p, model: mv})
		}
	}
	return pairs
}

// interpolate linearly resamples the model onto observation multipoles that
// fall inside the model's l-range. Observation points outside the model range
// are dropped, never extrapolated.
func interpolate(obs, model spectrum.Spectrum) []alignedPair {
	if model.Len() == 0 {
		return nil
	}
	var pairs []alignedPair
	j := 0
	for _, p := range obs.Points {
		for j < model.Len()-1 && model.Points[j+1].Ell < p.Ell {
			j++
		}
		if p.Ell < model.Points[0].Ell || p.Ell > model.Points[model.Len()-1].Ell {
			continue
		}
		lo := model.Points[j]
		if lo.Ell == p.Ell || j == model.Len()-1 {
			pairs = append(pairs, alignedPair{obs: p, model: lo.Value})
			continue
		}
		hi := model.Points[j+1]
		if hi.Ell == lo.Ell {
			pairs = append(pairs, alignedPair{obs: p, model: lo.Value})
			continue
		}
		frac := float64(p.Ell-lo.Ell) / float64(hi.Ell-lo.Ell)
		pairs = append(pairs, alignedPair{obs: p, model: lo.Value + frac*(hi.Value-lo.Value)})
	}
	return pairs
}

// AutoResolveModelUnits runs the chi2 precheck when the model's units are
// Unknown or disagree with the observation: both candidate interpretations of
// the model are scored by chi2/dof against the observation and the one closer
// to 1 wins. When both interpretations are catastrophic the resolution fails;
// there is nothing statistically meaningful to test and the caller must treat
// the cell as terminal.
func AutoResolveModelUnits(obs, model spectrum.Spectrum, opts Options, catastrophicChi2 float64) (spectrum.UnitResolution, error) {
	if obs.Units == spectrum.UnitsUnknown {
		return spectrum.UnitResolution{}, fmt.Errorf("%w: observation units must be resolved before the model precheck", core.ErrUnknownUnits)
	}

	asCl, errCl := Compute(obs, model.Reinterpreted(spectrum.UnitsCl), opts)
	asDl, errDl := Compute(obs, model.Reinterpreted(spectrum.UnitsDl), opts)
	if errCl != nil || errDl != nil {
		return spectrum.UnitResolution{}, fmt.Errorf("chi2 precheck: cl=%v dl=%v", errCl, errDl)
	}

	chi2Cl := precheckScore(asCl)
	chi2Dl := precheckScore(asDl)

	res := spectrum.UnitResolution{
		Method:         spectrum.MethodChi2Precheck,
		Chi2PerDofAsCl: &chi2Cl,
		Chi2PerDofAsDl: &chi2Dl,
	}

	if chi2Cl > catastrophicChi2 && chi2Dl > catastrophicChi2 {
		res.Units = spectrum.UnitsUnknown
		res.Failed = true
		return res, nil
	}

	if math.Abs(chi2Cl-1) <= math.Abs(chi2Dl-1) {
		res.Units = spectrum.UnitsCl
	} else {
		res.Units = spectrum.UnitsDl
	}
	return res, nil
}

// precheckScore maps a degenerate residual set to +Inf so an interpretation
// with no usable overlap can never win the precheck.
func precheckScore(set residual.Set) float64 {
	if set.Dof == 0 {
		return math.Inf(1)
	}
	return set.Chi2PerDof
}
