package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/model"
)

// configFromArgs runs a throwaway subcommand under the root command and
// returns the Config built for it.
func configFromArgs(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()

	var (
		cfg    *config.Config
		cfgErr error
	)
	probe := &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgErr = buildConfig(cmd)
			return nil
		},
	}
	addExtractionFlags(probe)
	probe.Flags().StringP("output", "o", config.DefaultOutputFile, "")

	root := NewRootCmd()
	root.AddCommand(probe)
	root.SetArgs(append([]string{"probe"}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}
	return cfg, cfgErr
}

// isolate points the config search and the API key at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvAPIKey, "")
	if err := os.Unsetenv(config.EnvAPIKey); err != nil {
		t.Fatal(err)
	}
	return dir
}

// TestBuildConfig tests the layering of defaults, file, environment and flags.
func TestBuildConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		isolate(t)

		cfg, err := configFromArgs(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Model != config.DefaultModel || cfg.PricePerMillion != config.DefaultPricePerMillion {
			t.Errorf("unexpected model settings %q %v", cfg.Model, cfg.PricePerMillion)
		}
		if !reflect.DeepEqual(cfg.Fields, model.DefaultFields) {
			t.Errorf("expected default fields, got %v", cfg.Fields)
		}
		if cfg.MaxFollowPages != 5 {
			t.Errorf("expected 5 follow pages, got %d", cfg.MaxFollowPages)
		}
		if cfg.APIKey != "" {
			t.Errorf("expected no API key, got %q", cfg.APIKey)
		}
	})

	t.Run("env file provides the API key", func(t *testing.T) {
		dir := isolate(t)
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(config.EnvAPIKey+"=gsk_dotenv\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := configFromArgs(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.APIKey != "gsk_dotenv" {
			t.Errorf("expected key from .env, got %q", cfg.APIKey)
		}
	})

	t.Run("config file then flags", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		data := []byte("model: llama-3.3-70b\npricePerMillion: 0.59\nmaxFollowPages: 2\ntimeout: 10s\nfields:\n  - email\n")
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := configFromArgs(t, "--config", path, "--price", "1.5", "-f", " Email , VAT_Number ,", "-o", "out/result.csv", "-v")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Model != "llama-3.3-70b" {
			t.Errorf("expected model from file, got %q", cfg.Model)
		}
		if cfg.PricePerMillion != 1.5 {
			t.Errorf("expected price from flag, got %v", cfg.PricePerMillion)
		}
		if cfg.MaxFollowPages != 2 {
			t.Errorf("expected follow pages from file, got %d", cfg.MaxFollowPages)
		}
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected timeout from file, got %v", cfg.Timeout)
		}
		if want := []string{"email", "vat_number"}; !reflect.DeepEqual(cfg.Fields, want) {
			t.Errorf("expected fields %v, got %v", want, cfg.Fields)
		}
		if cfg.OutputFile != "out/result.csv" {
			t.Errorf("expected output from flag, got %q", cfg.OutputFile)
		}
		if !cfg.Verbose {
			t.Error("expected verbose from persistent flag")
		}
	})

	t.Run("config file in the working directory", func(t *testing.T) {
		dir := isolate(t)
		if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte("concurrency: 3\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := configFromArgs(t)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Concurrency != 3 {
			t.Errorf("expected concurrency 3, got %d", cfg.Concurrency)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		isolate(t)

		_, err := configFromArgs(t, "--config", "does-not-exist.yaml")
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

// TestNormalizeFields tests field name clean-up.
func TestNormalizeFields(t *testing.T) {
	t.Parallel()

	got := normalizeFields([]string{" Phone_Number", "", "  ", "EMAIL "})
	want := []string{"phone_number", "email"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestExtractionFlags tests the flags shared by run and serve.
func TestExtractionFlags(t *testing.T) {
	t.Parallel()

	for _, cmd := range []*cobra.Command{NewRunCmd(), NewServeCmd()} {
		for _, name := range []string{"fields", "max-pages", "concurrency", "model", "base-url", "price", "timeout", "render-js", "respect-robots"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("%s: expected %s flag", cmd.Name(), name)
			}
		}
	}

	fields := NewRunCmd().Flags().Lookup("fields")
	if fields.Shorthand != "f" {
		t.Errorf("expected shorthand 'f', got %q", fields.Shorthand)
	}
	if fields.DefValue != "[phone_number,email,company_overview,headquarters_location]" {
		t.Errorf("unexpected fields default %q", fields.DefValue)
	}
}
