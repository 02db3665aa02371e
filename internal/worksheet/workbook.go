package worksheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// Workbook is an ordered set of sheets from one export file.
type Workbook struct {
	Name   string
	Sheets []Sheet
}

// SheetNames returns the sheet names in workbook order.
func (wb Workbook) SheetNames() []string {
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names
}

// ReadFile opens a workbook from disk, choosing the reader by extension.
// sheetName names the single sheet of a CSV file; empty uses the file stem.
func ReadFile(path, sheetName string) (Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return Workbook{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return Read(filepath.Base(path), sheetName, f)
}

// Read decodes a workbook from r, choosing the reader by the file name's
// extension.
func Read(fileName, sheetName string, r io.Reader) (Workbook, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		wb, err := ReadXLSX(r)
		if err != nil {
			return Workbook{}, err
		}
		wb.Name = fileName
		return wb, nil
	case ".csv", ".txt":
		if sheetName == "" {
			sheetName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		}
		wb, err := ReadCSV(sheetName, r)
		if err != nil {
			return Workbook{}, err
		}
		wb.Name = fileName
		return wb, nil
	default:
		return Workbook{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

// ReadXLSX reads every sheet of an Office Open XML workbook.
func ReadXLSX(r io.Reader) (Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Workbook{}, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	var wb Workbook
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return Workbook{}, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// ReadCSV reads a single-sheet CSV export.
func ReadCSV(sheetName string, r io.Reader) (Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Workbook{}, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(decodeText(data)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return Workbook{}, fmt.Errorf("invalid csv: %w", err)
	}

	return Workbook{Sheets: []Sheet{{Name: sheetName, Rows: rows}}}, nil
}
