package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/metrics"
	"github.com/nao1215/magicscraper/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the browser interface",
		Long: `Serve starts a web interface where a CSV file can be uploaded, fields
chosen and the run followed live. Results are offered as a CSV download
named company_info.csv.

Prometheus metrics are exposed at /metrics.

Examples:
  # Serve on the default address
  magicscraper serve

  # Serve on all interfaces
  magicscraper serve --listen :8501`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addExtractionFlags(cmd)
	cmd.Flags().StringP("listen", "l", config.DefaultListen, "Address of the web interface")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg)
	if cfg.APIKey == "" {
		logger.Warn("no API key configured, jobs will be rejected", "env", config.EnvAPIKey)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(metrics.WithRuntimeCollectors())
	a := newApp(cfg, logger, m)

	srv, err := server.New(a.process, server.Settings{
		Model:           cfg.Model,
		PricePerMillion: cfg.PricePerMillion,
		Fields:          cfg.Fields,
	},
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithPreflight(cfg.RequireAPIKey),
		server.WithBaseContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Magic Scraper is running at http://%s\n", cfg.Listen)
	return srv.ListenAndServe(ctx, cfg.Listen)
}
