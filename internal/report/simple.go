package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/magicscraper/internal/model"
)

const bannerWidth = 60

// SimpleWriter outputs the human-readable run summary shown at the end of a
// terminal run.
type SimpleWriter struct {
	baseWriter

	// showResults adds one line per processed URL.
	showResults bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithResults lists every processed URL with its status.
func WithResults(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showResults = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the batch summary.
func (w *SimpleWriter) Write(batch *model.Batch) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, batch)
	w.writeFillRates(&sb, batch)
	if w.showResults {
		w.writeResults(&sb, batch)
	}
	sb.WriteString(strings.Repeat("=", bannerWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the banner with model, tokens, cost and time.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, batch *model.Batch) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", bannerWidth))
	sb.WriteString("\n")
	sb.WriteString("                     SCRAPING COMPLETE\n")
	sb.WriteString(strings.Repeat("=", bannerWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Model:           %s\n", batch.Model)
	fmt.Fprintf(sb, "URLs Processed:  %d (%d complete)\n", len(batch.Results), batch.CompleteCount())
	fmt.Fprintf(sb, "Total Tokens:    %d\n", batch.TotalTokens())
	fmt.Fprintf(sb, "Estimated Cost:  %s\n", Cost(batch.EstimatedCost()))
	fmt.Fprintf(sb, "Time Taken:      %.2f minutes\n", batch.ElapsedMinutes())
	sb.WriteString("\n")
}

// writeFillRates writes the per-field and overall fill rates.
func (w *SimpleWriter) writeFillRates(sb *strings.Builder, batch *model.Batch) {
	sb.WriteString(strings.Repeat("-", bannerWidth))
	sb.WriteString("\n")
	sb.WriteString("FILL RATES\n")
	sb.WriteString(strings.Repeat("-", bannerWidth))
	sb.WriteString("\n\n")

	for _, r := range batch.FillRates() {
		fmt.Fprintf(sb, "  %-20s %6s  (%d/%d)\n", FieldLabel(r.Field), Percent(r.Percent), r.Filled, r.Total)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  %-20s %6s\n", "Overall", Percent(batch.OverallFillRate()))
	sb.WriteString("\n")
}

// writeResults writes one line per processed URL.
func (w *SimpleWriter) writeResults(sb *strings.Builder, batch *model.Batch) {
	sb.WriteString(strings.Repeat("-", bannerWidth))
	sb.WriteString("\n")
	sb.WriteString("RESULTS\n")
	sb.WriteString(strings.Repeat("-", bannerWidth))
	sb.WriteString("\n\n")

	if len(batch.Results) == 0 {
		sb.WriteString("  No URLs processed\n\n")
		return
	}
	for _, r := range batch.Results {
		fmt.Fprintf(sb, "  [%s] %s (%d tokens, %d pages)\n", r.Status(), r.OriginalURL, r.TokensUsed, len(r.Visited))
		for _, e := range r.Errors {
			fmt.Fprintf(sb, "    error: %s\n", e)
		}
	}
	sb.WriteString("\n")
}
