package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// csvWriter writes a header row from the field order, then one row per record.
type csvWriter struct {
	out           io.WriteCloser
	w             *csv.Writer
	fields        []string
	headerWritten bool
}

func newCSVWriter(out io.WriteCloser, fields []string) *csvWriter {
	return &csvWriter{out: out, w: csv.NewWriter(out), fields: fields}
}

func (w *csvWriter) ensureHeader(item schemas.ResultItem) error {
	if w.headerWritten {
		return nil
	}
	if len(w.fields) == 0 {
		w.fields = item.Names()
	}
	w.headerWritten = true
	if err := w.w.Write(w.fields); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	return nil
}

func (w *csvWriter) Write(item schemas.ResultItem) error {
	if err := w.ensureHeader(item); err != nil {
		return err
	}
	if err := w.w.Write(row(item, w.fields)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	return nil
}

func (w *csvWriter) Close() error {
	if !w.headerWritten && len(w.fields) > 0 {
		if err := w.ensureHeader(nil); err != nil {
			w.out.Close()
			return err
		}
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.out.Close()
		return fmt.Errorf("failed to flush csv export: %w", err)
	}
	return w.out.Close()
}
