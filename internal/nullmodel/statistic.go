package nullmodel

import (
	"math"
)

// PeriodPower is the pre-registered test statistic for periodic structure: the
// normalized spectral power of the residual sequence at the candidate period,
//
//	S(P) = |sum_j x_j * exp(2*pi*i * l_j / P)|^2 / sum_j x_j^2
//
// evaluated over the actual multipole indices, so gaps in the aligned l-range
// do not masquerade as phase jumps. S is invariant under relabeling of draws
// and grows with coherent alignment of residuals to the period.
func PeriodPower(ells []int, values []float64, period int) float64 {
	if len(values) == 0 || period < 2 {
		return 0
	}
	var re, im, power float64
	for j, x := range values {
		phase := 2 * math.Pi * float64(ells[j]) / float64(period)
		re += x * math.Cos(phase)
		im += x * math.Sin(phase)
		power += x * x
	}
	if power == 0 {
		return 0
	}
	return (re*re + im*im) / power
}
