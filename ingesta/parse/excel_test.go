package parse

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, cells map[string]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("failed to create sheet: %v", err)
		}
	}
	for cell, value := range cells {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			t.Fatalf("failed to set %s: %v", cell, err)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
	return path
}

func TestExcelParser_Parse(t *testing.T) {
	path := writeWorkbook(t, "Datos", map[string]interface{}{
		"A1": "Fecha", "B1": "Valor",
		"A2": "2025-03-01", "B2": "10,5",
		"A3": "2025-03-02", "B3": "n.d.",
		"A4": "2025-03-03", "B4": "11,5",
	})

	p := &ExcelParser{}
	got, err := p.Parse(path, Options{
		Sheet:       "Datos",
		SkipRows:    1,
		DateColumn:  0,
		ValueColumn: 1,
		Periodicity: "D",
	})
	if err != nil {
		t.Fatalf("ExcelParser.Parse() error = %v", err)
	}

	if len(got.Points) != 2 {
		t.Fatalf("ExcelParser.Parse() kept %d points, want 2", len(got.Points))
	}
	if d := got.Points[0].Date.Format("2006-01-02"); d != "2025-03-01" {
		t.Errorf("first point date = %s, want 2025-03-01", d)
	}
	if v := got.Points[0].Value.String(); v != "10.5" {
		t.Errorf("first point value = %s, want 10.5", v)
	}

	if _, err := p.Parse(path, Options{Sheet: "NoExiste"}); err == nil {
		t.Error("ExcelParser.Parse() with missing sheet expected error, got nil")
	}
}

// Workbook rows come back trimmed of trailing empty cells; a row with a
// date but no value is a blank value cell, not a malformed row.
func TestExcelParser_Parse_TrailingBlankValue(t *testing.T) {
	path := writeWorkbook(t, "Datos", map[string]interface{}{
		"A1": "2025-03-01", "B1": "10,5",
		"A2": "2025-03-02",
		"A3": "2025-03-03", "B3": "11,5",
	})

	p := &ExcelParser{}
	got, err := p.Parse(path, Options{
		Sheet:       "Datos",
		DateColumn:  0,
		ValueColumn: 1,
		Periodicity: "D",
	})
	if err != nil {
		t.Fatalf("ExcelParser.Parse() error = %v", err)
	}

	if len(got.Points) != 2 {
		t.Fatalf("ExcelParser.Parse() kept %d points, want 2", len(got.Points))
	}
	if d := got.Points[1].Date.Format("2006-01-02"); d != "2025-03-03" {
		t.Errorf("second point date = %s, want 2025-03-03", d)
	}
}

func TestMatrixParser_Parse(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", map[string]interface{}{
		"A1": "Mes", "B1": "2023", "C1": "2024",
		"A2": "Enero", "B2": "1,1", "C2": "2,1",
		"A3": "Febrero", "B3": "1,2", "C3": "n.d.",
		"A4": "Setiembre", "B4": "1,9", "C4": "2,9",
	})

	p := &MatrixParser{}
	got, err := p.Parse(path, Options{Periodicity: "M"})
	if err != nil {
		t.Fatalf("MatrixParser.Parse() error = %v", err)
	}

	want := map[string]string{
		"2023-01-01": "1.1",
		"2024-01-01": "2.1",
		"2023-02-01": "1.2",
		"2023-09-01": "1.9",
		"2024-09-01": "2.9",
	}
	if len(got.Points) != len(want) {
		t.Fatalf("MatrixParser.Parse() kept %d points, want %d", len(got.Points), len(want))
	}
	for _, pt := range got.Points {
		key := pt.Date.Format("2006-01-02")
		wantValue, ok := want[key]
		if !ok {
			t.Errorf("unexpected point at %s", key)
			continue
		}
		if pt.Value.String() != wantValue {
			t.Errorf("point at %s = %s, want %s", key, pt.Value.String(), wantValue)
		}
	}

	for i := 1; i < len(got.Points); i++ {
		if !got.Points[i-1].Date.Before(got.Points[i].Date) {
			t.Errorf("points not sorted ascending at index %d", i)
		}
	}
}

func TestMatrixParser_BadHeader(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", map[string]interface{}{
		"A1": "Mes", "B1": "no-year",
		"A2": "Enero", "B2": "1,1",
	})

	p := &MatrixParser{}
	if _, err := p.Parse(path, Options{Periodicity: "M"}); err == nil {
		t.Error("MatrixParser.Parse() with non-numeric year header expected error, got nil")
	}
}
