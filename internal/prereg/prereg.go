// Package prereg loads the pre-registration artifact: significance thresholds
// fixed before any results are viewed. The artifact is a Markdown document an
// auditor reads, with the machine-readable thresholds in a fenced json code
// block, so the human text and the values the engine enforces cannot drift
// apart. No call site hardcodes a threshold.
package prereg

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"periodscan/internal/errors"
)

// Thresholds are the pre-registered significance criteria.
type Thresholds struct {
	// Alpha is the primary p-value threshold separating null from positive.
	Alpha float64 `json:"alpha"`

	// StrongMaxP and StrongMinZ are the secondary criteria promoting a
	// candidate to strong: the empirical p-value must not exceed StrongMaxP
	// and the z-score must reach StrongMinZ. Nothing beyond these two is
	// inferred; the artifact is the single source of truth.
	StrongMaxP float64 `json:"strong_max_p"`
	StrongMinZ float64 `json:"strong_min_z"`
}

// defaultDocument is the built-in pre-registration used when no artifact path
// is configured. It follows the same format as an external file.
const defaultDocument = "# Pre-registered significance criteria\n" +
	"\n" +
	"Registered before any real-data grid run. The engine refuses thresholds\n" +
	"from any other source.\n" +
	"\n" +
	"- A result is positive when its empirical p-value is at most alpha.\n" +
	"- A positive result is strong when it additionally satisfies both\n" +
	"  secondary criteria below; otherwise it is a candidate.\n" +
	"\n" +
	"```json\n" +
	"{\n" +
	"  \"alpha\": 0.05,\n" +
	"  \"strong_max_p\": 0.001,\n" +
	"  \"strong_min_z\": 4.0\n" +
	"}\n" +
	"```\n"

// Load reads thresholds from a Markdown pre-registration file.
func Load(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, errors.Wrapf(err, "failed to read pre-registration artifact %s", path)
	}
	return parse(data)
}

// Default returns the thresholds from the built-in document.
func Default() (Thresholds, error) {
	return parse([]byte(defaultDocument))
}

// parse extracts the first fenced json block from the document and decodes it
// strictly: unknown keys mean the artifact and the engine disagree about what
// was registered, which is a hard error.
func parse(doc []byte) (Thresholds, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	root := p.Parse(doc)

	var block []byte
	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		if block != nil {
			return ast.Terminate
		}
		if cb, ok := node.(*ast.CodeBlock); ok && entering {
			if string(bytes.TrimSpace(cb.Info)) == "json" {
				block = cb.Literal
				return ast.Terminate
			}
		}
		return ast.GoToNext
	})
	if block == nil {
		return Thresholds{}, errors.ConfigInvalid("pre-registration artifact contains no fenced json block")
	}

	dec := json.NewDecoder(bytes.NewReader(block))
	dec.DisallowUnknownFields()
	var th Thresholds
	if err := dec.Decode(&th); err != nil {
		return Thresholds{}, errors.ConfigInvalid("pre-registration thresholds are malformed: " + err.Error())
	}
	if err := th.Validate(); err != nil {
		return Thresholds{}, err
	}
	return th, nil
}

// Validate checks the registered values are internally consistent.
func (t Thresholds) Validate() error {
	if t.Alpha <= 0 || t.Alpha >= 1 {
		return errors.ConfigInvalid("pre-registered alpha must be in (0, 1)")
	}
	if t.StrongMaxP <= 0 || t.StrongMaxP > t.Alpha {
		return errors.ConfigInvalid("pre-registered strong_max_p must be in (0, alpha]")
	}
	if t.StrongMinZ < 0 {
		return errors.ConfigInvalid("pre-registered strong_min_z must be non-negative")
	}
	return nil
}
