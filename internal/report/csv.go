package report

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/nao1215/magicscraper/internal/model"
)

const (
	// DownloadName is the file name offered for the result table.
	DownloadName = "company_info.csv"

	// OriginalURLColumn is the first column of the result table.
	OriginalURLColumn = "original_url"
)

// CSVWriter outputs the result table: the original URL followed by the
// selected fields, one row per processed URL.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the batch as CSV.
func (w *CSVWriter) Write(batch *model.Batch) (int, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(Header(batch.Fields)); err != nil {
		return 0, err
	}
	for _, row := range Rows(batch) {
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return w.output.Write(buf.Bytes())
}

// Header returns the result table header for the given fields.
func Header(fields []string) []string {
	header := make([]string, 0, len(fields)+1)
	header = append(header, OriginalURLColumn)
	return append(header, fields...)
}

// Rows returns the result table body in input order.
// Fields missing from a record are written as "Not found".
func Rows(batch *model.Batch) [][]string {
	rows := make([][]string, 0, len(batch.Results))
	for _, r := range batch.Results {
		row := make([]string, 0, len(batch.Fields)+1)
		row = append(row, r.OriginalURL)
		for _, f := range batch.Fields {
			v, ok := r.Record[f]
			if !ok || v == "" {
				v = model.NotFound
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows
}
