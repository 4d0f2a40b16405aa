package residual

import (
	"testing"

	"periodscan/domain/residual"
)

func sequentialSet(n int) residual.Set {
	set := residual.Set{}
	for i := 0; i < n; i++ {
		set.Ells = append(set.Ells, 100+i)
		set.Normalized = append(set.Normalized, float64(i))
	}
	set.Dof = n
	return set
}

func TestWindowTail(t *testing.T) {
	set := sequentialSet(10)

	tests := []struct {
		name      string
		window    int
		wantLen   int
		wantFirst int
	}{
		{"smaller than set", 4, 4, 106},
		{"equal to set", 10, 10, 100},
		{"larger than set", 50, 10, 100},
		{"zero disables", 0, 10, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ells, values := WindowTail(set, tt.window)
			if len(ells) != tt.wantLen || len(values) != tt.wantLen {
				t.Fatalf("lengths = (%d, %d), want %d", len(ells), len(values), tt.wantLen)
			}
			if ells[0] != tt.wantFirst {
				t.Errorf("first ell = %d, want %d", ells[0], tt.wantFirst)
			}
			// The tail must end at the highest multipole.
			if ells[len(ells)-1] != 109 {
				t.Errorf("last ell = %d, want 109", ells[len(ells)-1])
			}
		})
	}
}

func TestRebin(t *testing.T) {
	ells := []int{10, 11, 12, 13, 14, 15}
	values := []float64{1, 2, 3, 4, 5, 6}

	outEll, outVal := Rebin(ells, values, 3)
	if len(outVal) != 3 {
		t.Fatalf("rebinned length = %d, want 3", len(outVal))
	}
	want := []float64{1.5, 3.5, 5.5}
	for i := range want {
		if outVal[i] != want[i] {
			t.Errorf("value[%d] = %g, want %g", i, outVal[i], want[i])
		}
	}
	wantEll := []int{11, 13, 15} // rounded block-average multipoles
	for i := range wantEll {
		if outEll[i] != wantEll[i] {
			t.Errorf("ell[%d] = %d, want %d", i, outEll[i], wantEll[i])
		}
	}
}

func TestRebinDisabled(t *testing.T) {
	ells := []int{1, 2, 3}
	values := []float64{1, 2, 3}

	for _, target := range []int{0, 3, 10} {
		outEll, outVal := Rebin(ells, values, target)
		if len(outEll) != 3 || len(outVal) != 3 {
			t.Errorf("target %d: rebinning should be a no-op", target)
		}
	}
}
