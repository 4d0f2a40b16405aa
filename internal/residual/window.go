package residual

import (
	"math"

	"periodscan/domain/residual"
)

// WindowTail returns the trailing (highest-l) window of the normalized
// residual sequence. Gating always runs on the full aligned set; the window is
// a view for the periodicity statistic only. A window no smaller than the set
// is a no-op.
func WindowTail(set residual.Set, window int) ([]int, []float64) {
	n := len(set.Normalized)
	if window <= 0 || window >= n {
		return set.Ells[len(set.Ells)-n:], set.Normalized
	}
	start := n - window
	return set.Ells[len(set.Ells)-n+start:], set.Normalized[start:]
}

// Rebin block-averages the sequence down to at most target points, averaging
// the multipole indices of each block alongside the values. target <= 0 or
// target >= len disables rebinning.
func Rebin(ells []int, values []float64, target int) ([]int, []float64) {
	n := len(values)
	if target <= 0 || target >= n {
		return ells, values
	}
	block := int(math.Ceil(float64(n) / float64(target)))

	var outEll []int
	var outVal []float64
	for start := 0; start < n; start += block {
		end := start + block
		if end > n {
			end = n
		}
		var sumV, sumL float64
		for i := start; i < end; i++ {
			sumV += values[i]
			sumL += float64(ells[i])
		}
		size := float64(end - start)
		outVal = append(outVal, sumV/size)
		outEll = append(outEll, int(math.Round(sumL/size)))
	}
	return outEll, outVal
}
