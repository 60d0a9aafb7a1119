package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	// ConsolidatedFile is the name of the merged workbook.
	ConsolidatedFile  = "Consolidated_Workbook.xlsx"
	ConsolidatedSheet = "Consolidated Data"
)

// ConsolidatedHeader is the header row of the merged sheet.
var ConsolidatedHeader = []string{"Workbook", "Sheet", "Code", "Term"}

// Entry is one concept row gathered from a source workbook.
type Entry struct {
	Workbook string
	Sheet    string
	Code     string
	Term     string
}

// Consolidate gathers the concept columns of every workbook in sourceDir into
// outputDir/Consolidated_Workbook.xlsx and returns the written path. Office
// lock files (~$*) and a previous consolidated workbook are skipped.
func Consolidate(sourceDir, outputDir string, log zerolog.Logger) (string, error) {
	log.Info().Str("dir", sourceDir).Msg("consolidating workbooks")

	entries, err := Collect(sourceDir, log)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(defaultSheet, ConsolidatedSheet); err != nil {
		return "", err
	}
	if err := setRow(f, ConsolidatedSheet, 1, ConsolidatedHeader); err != nil {
		return "", err
	}
	for i, e := range entries {
		if err := setRow(f, ConsolidatedSheet, i+2, []string{e.Workbook, e.Sheet, e.Code, e.Term}); err != nil {
			return "", err
		}
	}

	path := filepath.Join(outputDir, ConsolidatedFile)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save consolidated workbook: %w", err)
	}
	log.Info().Str("path", path).Int("rows", len(entries)).Msg("consolidated workbook saved")
	return path, nil
}

// Collect reads the concept and term columns, from row 2 down, of every
// sheet of every workbook in dir. Workbooks are visited in name order.
func Collect(dir string, log zerolog.Logger) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}
	var names []string
	for _, e := range files {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".xlsx") || strings.HasPrefix(n, "~$") || n == ConsolidatedFile {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	var out []Entry
	for _, name := range names {
		log.Info().Str("workbook", name).Msg("processing workbook")
		rows, err := collectFile(filepath.Join(dir, name), name)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func collectFile(path, name string) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	conceptIdx, err := excelize.ColumnNameToNumber(ConceptColumn)
	if err != nil {
		return nil, err
	}
	conceptIdx--

	var out []Entry
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", name, sheet, err)
		}
		for i := 1; i < len(rows); i++ {
			row := rows[i]
			if len(row) <= conceptIdx || row[conceptIdx] == "" {
				continue
			}
			e := Entry{Workbook: name, Sheet: sheet, Code: row[conceptIdx]}
			if len(row) > conceptIdx+1 {
				e.Term = row[conceptIdx+1]
			}
			out = append(out, e)
		}
	}
	return out, nil
}
