// internal/export/xlsx.go
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

const xlsxSheet = "Results"

// xlsxWriter streams rows into a single-sheet workbook saved on Close.
type xlsxWriter struct {
	path        string
	file        *excelize.File
	sw          *excelize.StreamWriter
	fields      []string
	headerStyle int
	nextRow     int
}

func newXLSXWriter(path string, fields []string) (*xlsxWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open worksheet stream: %w", err)
	}
	return &xlsxWriter{path: path, file: f, sw: sw, fields: fields, headerStyle: style, nextRow: 1}, nil
}

func (w *xlsxWriter) setRow(values []string, opts ...excelize.RowOpts) error {
	cell, err := excelize.CoordinatesToCellName(1, w.nextRow)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := w.sw.SetRow(cell, row, opts...); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.nextRow, err)
	}
	w.nextRow++
	return nil
}

func (w *xlsxWriter) ensureHeader(item schemas.ResultItem) error {
	if w.nextRow > 1 {
		return nil
	}
	if len(w.fields) == 0 {
		w.fields = item.Names()
	}
	return w.setRow(w.fields, excelize.RowOpts{StyleID: w.headerStyle})
}

func (w *xlsxWriter) Write(item schemas.ResultItem) error {
	if err := w.ensureHeader(item); err != nil {
		return err
	}
	return w.setRow(row(item, w.fields))
}

func (w *xlsxWriter) Close() error {
	defer w.file.Close()
	if err := w.ensureHeader(nil); err != nil {
		return err
	}
	if err := w.sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush worksheet: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	return nil
}
