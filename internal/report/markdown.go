package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/magicscraper/internal/model"
)

// Overall fill rates at which the report alert changes.
const (
	goodFillRate = 80.0
	fairFillRate = 50.0
	poorFillRate = 20.0
)

// MarkdownWriter outputs the batch as a Markdown document for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the batch in Markdown format.
func (w *MarkdownWriter) Write(batch *model.Batch) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, batch)
	w.writeFillRates(md, batch)
	w.writeResults(md, batch)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, batch *model.Batch) {
	md.H1("Company Info Report")
	md.PlainText("")

	rows := [][]string{
		{"Model", "`" + batch.Model + "`"},
		{"Price per 1M Tokens", Cost(batch.PricePerMillion)},
		{"URLs Processed", strconv.Itoa(len(batch.Results))},
		{"Complete Records", strconv.Itoa(batch.CompleteCount())},
		{"Total Tokens", strconv.Itoa(batch.TotalTokens())},
		{"Estimated Cost", Cost(batch.EstimatedCost())},
		{"Time Taken", fmt.Sprintf("%.2f minutes", batch.ElapsedMinutes())},
	}
	if !batch.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", batch.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFillRates writes the per-field fill rates, a chart and an alert.
func (w *MarkdownWriter) writeFillRates(md *markdown.Markdown, batch *model.Batch) {
	md.H2("Fill Rates")
	md.PlainText("")

	rates := batch.FillRates()
	rows := make([][]string, 0, len(rates)+1)
	for _, r := range rates {
		rows = append(rows, []string{
			FieldLabel(r.Field),
			fmt.Sprintf("%d/%d", r.Filled, r.Total),
			Percent(r.Percent),
		})
	}
	rows = append(rows, []string{"**Overall**", "", "**" + Percent(batch.OverallFillRate()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Field", "Filled", "Rate"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(batch.Results) > 0 && len(batch.Fields) > 0 {
		w.writePieChart(md, batch)
	}
	w.writeAlert(md, batch)
}

// writePieChart writes a mermaid pie chart of filled versus missing values.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, batch *model.Batch) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Extracted Values"),
		piechart.WithShowData(true),
	)

	filled := batch.FilledCount()
	missing := len(batch.Results)*len(batch.Fields) - filled
	if filled > 0 {
		chart.LabelAndIntValue("Filled", uint64(filled))
	}
	if missing > 0 {
		chart.LabelAndIntValue(model.NotFound, uint64(missing))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert keyed on the overall fill rate.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, batch *model.Batch) {
	rate := batch.OverallFillRate()
	switch {
	case len(batch.Results) == 0:
		md.Note("No URLs were processed.")
	case rate >= goodFillRate:
		md.Tip("Most requested fields were found.")
	case rate >= fairFillRate:
		md.Importantf("%s of the requested values were found.", Percent(rate))
	case rate >= poorFillRate:
		md.Warningf("Only %s of the requested values were found.", Percent(rate))
	default:
		md.Cautionf("Only %s of the requested values were found. Check the input URLs.", Percent(rate))
	}
	md.PlainText("")
}

// writeResults writes the result table.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, batch *model.Batch) {
	md.H2("Results")
	md.PlainText("")

	if len(batch.Results) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	header := []string{"URL"}
	for _, f := range batch.Fields {
		header = append(header, FieldLabel(f))
	}
	header = append(header, "Status", "Tokens")

	rows := make([][]string, 0, len(batch.Results))
	for i, row := range Rows(batch) {
		r := batch.Results[i]
		cells := make([]string, 0, len(row)+2)
		for _, cell := range row {
			cells = append(cells, truncateString(cell, 60))
		}
		cells = append(cells, r.Status(), strconv.Itoa(r.TokensUsed))
		rows = append(rows, cells)
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [MagicScraper](https://github.com/nao1215/magicscraper)*")
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
