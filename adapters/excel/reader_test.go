package excel

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"periodscan/domain/spectrum"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "spectrum.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestReadWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"l", "Dl", "sigma"},
		{2, 225.5, 10.1},
		{3, 310.2, 12.4},
	})

	s, err := NewReader().Read(context.Background(), path, spectrum.RoleObservation)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if s.Units != spectrum.UnitsUnknown {
		t.Errorf("units = %s, resolution belongs to the engine", s.Units)
	}
	if !strings.Contains(s.Header, "Dl") {
		t.Errorf("header row not captured: %q", s.Header)
	}
	if s.Len() != 2 {
		t.Fatalf("points = %d, want 2", s.Len())
	}
	if s.Points[0].Ell != 2 || s.Points[0].Value != 225.5 || s.Points[0].Sigma != 10.1 {
		t.Errorf("point[0] = %+v", s.Points[0])
	}
}

func TestReadWorkbookWithoutSigma(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{2, 1.5},
		{3, 1.6},
	})

	s, err := NewReader().Read(context.Background(), path, spectrum.RoleModel)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.Points[0].Sigma != 0 {
		t.Errorf("sigma = %g, want 0", s.Points[0].Sigma)
	}
}

func TestReadWorkbookRejectsBadValues(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{2, "not-a-number"},
	})

	if _, err := NewReader().Read(context.Background(), path, spectrum.RoleObservation); err == nil {
		t.Error("expected error for non-numeric value cell")
	}
}

func TestReadWorkbookEmpty(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"header", "only"},
	})

	if _, err := NewReader().Read(context.Background(), path, spectrum.RoleObservation); err == nil {
		t.Error("expected error for workbook with no data rows")
	}
}

func TestReadMissingWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.xlsx")
	if _, err := NewReader().Read(context.Background(), path, spectrum.RoleObservation); err == nil {
		t.Error("expected error for missing workbook")
	}
}
