// Package excel reads spectrum sheets, for observation files distributed as
// spreadsheets. Same row shapes as the text adapter: (l, value[, sigma]) with
// an optional leading header row carrying unit keywords.
package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"periodscan/domain/spectrum"
	"periodscan/internal/errors"
)

// Reader loads a spectrum from the first sheet of an xlsx workbook.
type Reader struct{}

// NewReader creates an Excel spectrum reader.
func NewReader() *Reader { return &Reader{} }

// Read parses the workbook's first sheet into a Spectrum. Units are left
// Unknown for the engine to resolve from the header row.
func (r *Reader) Read(ctx context.Context, path string, role spectrum.Role) (spectrum.Spectrum, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return spectrum.Spectrum{}, errors.Wrapf(err, "failed to open workbook %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s contains no sheets", path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return spectrum.Spectrum{}, errors.Wrapf(err, "failed to read sheet %s", sheets[0])
	}

	s := spectrum.Spectrum{Role: role, Units: spectrum.UnitsUnknown}
	var headerParts []string

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return spectrum.Spectrum{}, err
		}
		if len(row) == 0 {
			continue
		}

		ell, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			// Non-numeric first cell means a header row.
			headerParts = append(headerParts, strings.Join(row, " "))
			continue
		}
		if len(row) < 2 {
			return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s row %d: expected at least 2 cells", path, i+1))
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s row %d: value cell is not numeric: %q", path, i+1, row[1]))
		}
		point := spectrum.Point{Ell: ell, Value: value}
		if len(row) >= 3 && strings.TrimSpace(row[2]) != "" {
			sigma, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
			if err != nil {
				return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s row %d: uncertainty cell is not numeric: %q", path, i+1, row[2]))
			}
			point.Sigma = sigma
		}
		s.Points = append(s.Points, point)
	}

	if len(s.Points) == 0 {
		return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s contains no data rows", path))
	}
	s.Header = strings.Join(headerParts, "\n")
	return s, nil
}
