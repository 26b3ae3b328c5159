package export

import (
	"bufio"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonWriter streams records as a JSON array.
type jsonWriter struct {
	out   io.WriteCloser
	buf   *bufio.Writer
	count int
}

func newJSONWriter(out io.WriteCloser) *jsonWriter {
	return &jsonWriter{out: out, buf: bufio.NewWriter(out)}
}

func (w *jsonWriter) Write(item schemas.ResultItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", w.count, err)
	}
	sep := ",\n  "
	if w.count == 0 {
		sep = "[\n  "
	}
	if _, err := w.buf.WriteString(sep); err != nil {
		return err
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *jsonWriter) Close() error {
	tail := "\n]\n"
	if w.count == 0 {
		tail = "[]\n"
	}
	if _, err := w.buf.WriteString(tail); err != nil {
		w.out.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.out.Close()
		return fmt.Errorf("failed to flush json export: %w", err)
	}
	return w.out.Close()
}
