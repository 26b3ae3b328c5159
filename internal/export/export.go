// internal/export/export.go

// Package export writes extracted records to JSON, CSV or XLSX files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// Writer receives extracted records one at a time.
type Writer interface {
	// Write appends a single record.
	Write(item schemas.ResultItem) error
	// Close finalizes the output and releases the underlying file.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a writer for the format. fields fixes the column order for
// tabular formats. An empty path or "stdout" writes to standard output,
// except for xlsx, which always needs a file.
func New(format schemas.ExportFormat, path string, fields []string) (Writer, error) {
	isStdOut := path == "" || path == "stdout"

	if format == schemas.FormatXLSX {
		if isStdOut {
			return nil, fmt.Errorf("xlsx export requires an output file")
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return newXLSXWriter(path, fields)
	}

	var writer io.WriteCloser
	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		writer = f
	}

	switch format {
	case schemas.FormatJSON, "":
		return newJSONWriter(writer), nil
	case schemas.FormatCSV:
		return newCSVWriter(writer, fields), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteAll exports items to path in one call.
func WriteAll(format schemas.ExportFormat, path string, fields []string, items []schemas.ResultItem) error {
	w, err := New(format, path, fields)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := w.Write(item); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// row flattens an item to the given column order. Absent values become "".
func row(item schemas.ResultItem, fields []string) []string {
	out := make([]string, len(fields))
	for i, name := range fields {
		if v, ok := item.Get(name); ok {
			out[i] = v
		}
	}
	return out
}
