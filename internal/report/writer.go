package report

import (
	"io"

	"github.com/nao1215/magicscraper/internal/model"
)

// Writer outputs a finished batch in a specific format.
type Writer interface {
	// Write outputs the batch and returns the number of bytes written.
	Write(batch *model.Batch) (int, error)
}

// MultiWriter writes a batch to several writers in turn.
// It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a MultiWriter over the given writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the batch to every writer and returns the total bytes written.
func (m *MultiWriter) Write(batch *model.Batch) (int, error) {
	total := 0
	for _, w := range m.writers {
		n, err := w.Write(batch)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output shared by every format.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
