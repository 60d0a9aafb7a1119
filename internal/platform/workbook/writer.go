// Package workbook writes resolution results to Excel workbooks and merges
// previously written workbooks into a single consolidated one.
package workbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/snomedx/snomedx/internal/domain/resolution"
)

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

const (
	// ConceptColumn and TermColumn hold the accumulated concept set.
	ConceptColumn = "J"
	TermColumn    = "K"

	ConceptHeader = "All Concepts including Children"
	TermHeader    = "Terms for All Concepts"

	defaultSheet = "Sheet1"
)

// FileName returns the workbook file name for a report output name.
func FileName(outputName string) string {
	return "snomed_codes_" + outputName + ".xlsx"
}

// SheetName returns the sheet name of a value set.
func SheetName(v *resolution.ValueSetResult) string {
	return strconv.Itoa(v.Index)
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

// Writer saves one workbook per report into an output directory.
type Writer struct {
	dir string
	log zerolog.Logger
}

// NewWriter creates a Writer for dir. The directory is created on first write.
func NewWriter(dir string, log zerolog.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

// WriteReport saves the report as snomed_codes_<output name>.xlsx and returns
// the file path.
func (w *Writer) WriteReport(_ context.Context, report *resolution.ReportResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	f, err := Build(report)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(w.dir, FileName(report.OutputName))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook %s: %w", path, err)
	}
	w.log.Debug().Str("path", path).Int("sheets", len(report.ValueSets)).Msg("workbook written")
	return path, nil
}

// Build lays out a report as a workbook with one sheet per emitted value set.
func Build(report *resolution.ReportResult) (*excelize.File, error) {
	if len(report.ValueSets) == 0 {
		return nil, fmt.Errorf("report %q has no processed value sets", report.Name)
	}

	f := excelize.NewFile()
	for i, vs := range report.ValueSets {
		name := SheetName(vs)
		idx, err := f.NewSheet(name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, name, vs); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, vs *resolution.ValueSetResult) error {
	if err := setRow(f, sheet, 1, resolution.Header); err != nil {
		return err
	}
	for i, row := range vs.Rows {
		if err := setRow(f, sheet, i+2, row.Values()); err != nil {
			return err
		}
	}

	if err := f.SetCellValue(sheet, ConceptColumn+"1", ConceptHeader); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, TermColumn+"1", TermHeader); err != nil {
		return err
	}
	for i, c := range vs.Concepts {
		n := strconv.Itoa(i + 2)
		if err := f.SetCellValue(sheet, ConceptColumn+n, c.ID); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, TermColumn+n, c.Term); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
