package spectrum

import (
	"fmt"
	"math"

	"periodscan/domain/core"
)

// Role identifies which side of the comparison a spectrum sits on.
type Role string

const (
	RoleObservation Role = "observation"
	RoleModel       Role = "model"
)

// Units is the closed set of recognized angular power spectrum normalizations.
// Dl = l(l+1)Cl/2pi. Unknown is a legal state that must be gated downstream,
// never a crash.
type Units int

const (
	UnitsUnknown Units = iota
	UnitsCl
	UnitsDl
)

// String returns the wire representation of the unit tag.
func (u Units) String() string {
	switch u {
	case UnitsCl:
		return "Cl"
	case UnitsDl:
		return "Dl"
	case UnitsUnknown:
		return "Unknown"
	}
	return fmt.Sprintf("Units(%d)", int(u))
}

// MarshalText implements encoding.TextMarshaler for persisted records.
func (u Units) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An unrecognized tag is an
// error, not a silent Unknown.
func (u *Units) UnmarshalText(data []byte) error {
	switch string(data) {
	case "Cl":
		*u = UnitsCl
	case "Dl":
		*u = UnitsDl
	case "Unknown":
		*u = UnitsUnknown
	default:
		return fmt.Errorf("unrecognized units tag %q", string(data))
	}
	return nil
}

// Point is one multipole record: index l, value in the spectrum's units, and
// the reported per-l uncertainty (zero when the source file carries none).
type Point struct {
	Ell   int     `json:"ell"`
	Value float64 `json:"value"`
	Sigma float64 `json:"sigma"`
}

// Spectrum is an ordered sequence of multipole records tagged with a role and
// units. Treat it as immutable once loaded; transformations return copies.
type Spectrum struct {
	Role   Role
	Units  Units
	Header string // raw header line(s) from the source file, input to unit resolution
	Points []Point
}

// Len returns the number of records.
func (s Spectrum) Len() int { return len(s.Points) }

// Values returns a copy of the value column.
func (s Spectrum) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// Ells returns a copy of the multipole index column.
func (s Spectrum) Ells() []int {
	ells := make([]int, len(s.Points))
	for i, p := range s.Points {
		ells[i] = p.Ell
	}
	return ells
}

// DlToCl converts a single value from Dl to Cl via Cl = Dl * 2pi / (l(l+1)).
// For l < 2 the normalization factor degenerates (l(l+1) = 0 at l = 0), so the
// value passes through unchanged.
func DlToCl(ell int, dl float64) float64 {
	if ell < 2 {
		return dl
	}
	return dl * 2 * math.Pi / (float64(ell) * float64(ell+1))
}

// ClToDl converts a single value from Cl to Dl via Dl = l(l+1)Cl / 2pi, with
// the same low-l passthrough as DlToCl.
func ClToDl(ell int, cl float64) float64 {
	if ell < 2 {
		return cl
	}
	return cl * float64(ell) * float64(ell+1) / (2 * math.Pi)
}

// InUnits returns a copy of the spectrum converted to the target units. Values
// and uncertainties are rescaled together since sigma shares the value's units.
// Converting from or to Unknown is an error; callers must resolve units first.
func (s Spectrum) InUnits(target Units) (Spectrum, error) {
	if s.Units == UnitsUnknown {
		return Spectrum{}, fmt.Errorf("%w: cannot convert %s spectrum", core.ErrUnknownUnits, s.Role)
	}
	if target == UnitsUnknown {
		return Spectrum{}, fmt.Errorf("%w: Unknown is not a conversion target", core.ErrUnknownUnits)
	}
	out := Spectrum{Role: s.Role, Units: target, Header: s.Header, Points: make([]Point, len(s.Points))}
	copy(out.Points, s.Points)
	if s.Units == target {
		return out, nil
	}
	for i, p := range s.Points {
		switch target {
		case UnitsCl:
			out.Points[i].Value = DlToCl(p.Ell, p.Value)
			out.Points[i].Sigma = DlToCl(p.Ell, p.Sigma)
		case UnitsDl:
			out.Points[i].Value = ClToDl(p.Ell, p.Value)
			out.Points[i].Sigma = ClToDl(p.Ell, p.Sigma)
		}
	}
	return out, nil
}

// Reinterpreted returns a copy with the units tag replaced but values
// untouched. Used by the chi2 precheck to try both readings of an ambiguous
// file.
func (s Spectrum) Reinterpreted(units Units) Spectrum {
	out := Spectrum{Role: s.Role, Units: units, Header: s.Header, Points: make([]Point, len(s.Points))}
	copy(out.Points, s.Points)
	return out
}
