package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/magicscraper/internal/config"
)

// NewRootCmd creates the root command for Magic Scraper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "magicscraper",
		Short: "Extract company information from websites with an LLM",
		Long: `Magic Scraper reads a CSV table with a url column, crawls every website and
asks an LLM to extract the selected fields (phone number, email, company
overview, headquarters location by default).

The homepage is read first. While fields are still missing, up to five
internal links are followed, contact pages first. The result table is
written as CSV together with token usage, estimated cost and fill rates.

The API key is read from GROQ_API_KEY, or from a .env file in the current
directory.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .magicscraper in current or home directory)")
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file read for "+config.EnvAPIKey)

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
