package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/input"
	applog "github.com/nao1215/magicscraper/internal/log"
	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
	"github.com/nao1215/magicscraper/internal/report"
	"github.com/nao1215/magicscraper/internal/ui"
)

const previewRows = 5

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input.csv>",
		Short: "Extract company information for every URL of a CSV file",
		Long: `Run reads a CSV file with a url column, crawls every website and writes the
extracted fields to a CSV file (company_info.csv by default).

Progress is shown in an interactive terminal view when stdout is a terminal,
and as plain lines otherwise. Press q or ctrl+c to stop; URLs already
processed are still written.

Examples:
  # Extract the default fields
  magicscraper run companies.csv

  # Choose fields and the output file
  magicscraper run companies.csv -f phone_number,email,vat_number -o contacts.csv

  # Render JavaScript-heavy sites in headless Chrome
  magicscraper run companies.csv --render-js

  # Write a Markdown report next to the CSV
  magicscraper run companies.csv --markdown --report report.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunCmd,
	}

	addExtractionFlags(cmd)

	cmd.Flags().StringP("output", "o", config.DefaultOutputFile, "Results CSV file")
	cmd.Flags().BoolP("json", "j", false, "Write a JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Write a Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report", "", "Write the report to this file instead of stdout")
	cmd.Flags().Bool("no-tui", false, "Print plain progress lines even on a terminal")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.InputFile = args[0]
	}

	if err := cfg.ValidateRun(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	noTUI, err := cmd.Flags().GetBool("no-tui")
	if err != nil {
		return err
	}
	useTUI := !noTUI && isTerminal(cmd.OutOrStdout())

	logger := newLogger(cfg)
	if useTUI && !cfg.Verbose {
		logger = applog.Discard()
	}

	urls, err := input.ReadURLFile(cfg.InputFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d URLs from %s\n", len(urls), cfg.InputFile)
	for _, u := range input.Preview(urls, previewRows) {
		fmt.Fprintf(out, "  %s\n", u)
	}
	if len(urls) > previewRows {
		fmt.Fprintf(out, "  ... and %d more\n", len(urls)-previewRows)
	}
	fmt.Fprintf(out, "Model: %s (%s / 1M tokens)\n\n", cfg.Model, report.Cost(cfg.PricePerMillion))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger, nil)
	work := func(ctx context.Context, onEvent func(pipeline.Event)) (*model.Batch, error) {
		return a.process(ctx, urls, cfg.Fields, onEvent)
	}

	var batch *model.Batch
	if useTUI {
		batch, err = ui.Run(ctx, ui.RunConfig{
			Model:           cfg.Model,
			PricePerMillion: cfg.PricePerMillion,
			Fields:          cfg.Fields,
			Total:           len(urls),
			Output:          out,
		}, work)
	} else {
		lines := ui.NewLineReporter(out, cfg.PricePerMillion)
		batch, err = work(ctx, lines.Handle)
	}

	if batch != nil {
		if werr := writeResults(cfg.OutputFile, batch); werr != nil {
			return werr
		}
		fmt.Fprintf(out, "\nResults written to %s\n", cfg.OutputFile)

		if !useTUI || cfg.JSONReport || cfg.MarkdownReport || cfg.ReportFile != "" {
			if rerr := outputReport(cfg, batch, out); rerr != nil {
				return rerr
			}
		}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("run cancelled after %d URLs", processedCount(batch))
	}
	return err
}

func processedCount(batch *model.Batch) int {
	if batch == nil {
		return 0
	}
	return len(batch.Results)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// createFile creates path and its parent directories. Results may contain
// personal data, so files are readable by the owner only.
func createFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeResults writes the result table as CSV.
func writeResults(path string, batch *model.Batch) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	if _, err := report.NewCSVWriter(f).Write(batch); err != nil {
		f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	return f.Close()
}

// outputReport writes the run summary in the requested format.
func outputReport(cfg *config.Config, batch *model.Batch, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		f, err := createFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithResults(cfg.Verbose))
	}

	_, err := w.Write(batch)
	return err
}
