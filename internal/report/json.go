package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/magicscraper/internal/model"
)

// JSONWriter outputs the batch in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string

	// version is stamped on the document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the given program version on the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Summary is the aggregate view of a batch.
type Summary struct {
	Model           string                `json:"model"`
	PricePerMillion float64               `json:"price_per_million"`
	URLs            int                   `json:"urls"`
	Complete        int                   `json:"complete"`
	TotalTokens     int                   `json:"total_tokens"`
	EstimatedCost   float64               `json:"estimated_cost_usd"`
	ElapsedMinutes  float64               `json:"elapsed_minutes"`
	OverallFillRate float64               `json:"overall_fill_rate"`
	FillRates       []model.FieldFillRate `json:"fill_rates"`
}

// NewSummary computes the summary of a batch.
func NewSummary(batch *model.Batch) *Summary {
	return &Summary{
		Model:           batch.Model,
		PricePerMillion: batch.PricePerMillion,
		URLs:            len(batch.Results),
		Complete:        batch.CompleteCount(),
		TotalTokens:     batch.TotalTokens(),
		EstimatedCost:   batch.EstimatedCost(),
		ElapsedMinutes:  batch.ElapsedMinutes(),
		OverallFillRate: batch.OverallFillRate(),
		FillRates:       batch.FillRates(),
	}
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	Version string       `json:"version,omitempty"`
	Summary *Summary     `json:"summary"`
	Batch   *model.Batch `json:"batch"`
}

// Write outputs the batch with its summary in JSON format.
func (w *JSONWriter) Write(batch *model.Batch) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Summary: NewSummary(batch),
		Batch:   batch,
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
