// Package report renders a finished batch.
//
// Writers implement the Writer interface and can be combined with
// MultiWriter:
//   - CSVWriter: the downloadable result table
//   - JSONWriter: the whole batch with a summary, for tool integration
//   - MarkdownWriter: a shareable report with fill-rate chart
//   - SimpleWriter: the terminal summary banner
package report
