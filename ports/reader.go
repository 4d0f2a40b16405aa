package ports

import (
	"context"

	"periodscan/domain/spectrum"
)

// SpectrumReader loads a spectrum from an external source. Column selection
// and header parsing live in the adapter; the statistical core only ever sees
// a Spectrum value.
type SpectrumReader interface {
	Read(ctx context.Context, path string, role spectrum.Role) (spectrum.Spectrum, error)
}
