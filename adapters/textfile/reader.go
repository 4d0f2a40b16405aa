// Package textfile reads whitespace-column spectrum files. Header parsing and
// column selection happen here; the statistical core only ever receives a
// Spectrum value.
package textfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"periodscan/domain/spectrum"
	"periodscan/internal/errors"
)

// Column names for the multi-column (l, TT, TE, EE, BB[, PP]) layout.
const (
	ColumnTT = "TT"
	ColumnTE = "TE"
	ColumnEE = "EE"
	ColumnBB = "BB"
	ColumnPP = "PP"
)

var multiColumnIndex = map[string]int{
	ColumnTT: 1,
	ColumnTE: 2,
	ColumnEE: 3,
	ColumnBB: 4,
	ColumnPP: 5,
}

// Reader loads (l, value[, sigma]) rows or the multi-column variant from a
// text file with an optional header line carrying unit keywords.
type Reader struct {
	// Column selects the value column for multi-column files. Empty means the
	// file is in the plain (l, value[, sigma]) layout.
	Column string
}

// NewReader creates a reader for plain two-or-three-column files.
func NewReader() *Reader { return &Reader{} }

// NewColumnReader creates a reader that selects one named column from the
// multi-column layout.
func NewColumnReader(column string) (*Reader, error) {
	if _, ok := multiColumnIndex[column]; !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown spectrum column %q", column))
	}
	return &Reader{Column: column}, nil
}

// Read parses the file into a Spectrum. The units tag is left Unknown: unit
// resolution belongs to the engine, which sees the raw header via
// Spectrum.Header. Malformed rows are an error, never silently dropped.
func (r *Reader) Read(ctx context.Context, path string, role spectrum.Role) (spectrum.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return spectrum.Spectrum{}, errors.Wrapf(err, "failed to open spectrum file %s", path)
	}
	defer f.Close()

	s := spectrum.Spectrum{Role: role, Units: spectrum.UnitsUnknown}
	var headerLines []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return spectrum.Spectrum{}, err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || !startsNumeric(line) {
			headerLines = append(headerLines, line)
			continue
		}

		point, err := r.parseRow(line)
		if err != nil {
			return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s:%d: %v", path, lineNo, err))
		}
		s.Points = append(s.Points, point)
	}
	if err := scanner.Err(); err != nil {
		return spectrum.Spectrum{}, errors.Wrapf(err, "failed to read spectrum file %s", path)
	}
	if len(s.Points) == 0 {
		return spectrum.Spectrum{}, errors.InvalidInput(fmt.Sprintf("%s contains no data rows", path))
	}

	s.Header = strings.Join(headerLines, "\n")
	return s, nil
}

// parseRow extracts (l, value[, sigma]) from one data row.
func (r *Reader) parseRow(line string) (spectrum.Point, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return spectrum.Point{}, fmt.Errorf("expected at least 2 columns, got %d", len(fields))
	}

	ell, err := strconv.Atoi(fields[0])
	if err != nil {
		// Some files carry l as a float (e.g. "2.0").
		ellF, ferr := strconv.ParseFloat(fields[0], 64)
		if ferr != nil || ellF != float64(int(ellF)) {
			return spectrum.Point{}, fmt.Errorf("multipole column is not an integer: %q", fields[0])
		}
		ell = int(ellF)
	}
	if ell < 0 {
		return spectrum.Point{}, fmt.Errorf("negative multipole %d", ell)
	}

	valueIdx := 1
	if r.Column != "" {
		valueIdx = multiColumnIndex[r.Column]
		if valueIdx >= len(fields) {
			return spectrum.Point{}, fmt.Errorf("column %s requires %d fields, got %d", r.Column, valueIdx+1, len(fields))
		}
	}

	value, err := strconv.ParseFloat(fields[valueIdx], 64)
	if err != nil {
		return spectrum.Point{}, fmt.Errorf("value column is not numeric: %q", fields[valueIdx])
	}

	point := spectrum.Point{Ell: ell, Value: value}

	// A trailing column after the value is the reported uncertainty in the
	// plain layout only; multi-column files carry no per-l sigma.
	if r.Column == "" && len(fields) >= 3 {
		sigma, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return spectrum.Point{}, fmt.Errorf("uncertainty column is not numeric: %q", fields[2])
		}
		point.Sigma = sigma
	}
	return point, nil
}

// startsNumeric reports whether the line begins with a digit, sign or decimal
// point, distinguishing data rows from header text.
func startsNumeric(line string) bool {
	c := line[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
