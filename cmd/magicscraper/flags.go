package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/model"
)

// addExtractionFlags registers the flags shared by run and serve.
func addExtractionFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringSliceP("fields", "f", model.DefaultFields, "Fields to extract, in output order")
	f.IntP("max-pages", "p", config.DefaultMaxFollowPages, "Internal links followed after the homepage")
	f.StringSlice("contact-keywords", config.DefaultContactKeywords, "URL keywords of links followed first")
	f.IntP("concurrency", "n", config.DefaultConcurrency, "Number of URLs processed at the same time")

	f.String("model", config.DefaultModel, "LLM used for extraction")
	f.String("base-url", config.DefaultBaseURL, "OpenAI-compatible API base URL")
	f.Float64("price", config.DefaultPricePerMillion, "Price in USD per one million tokens, for the cost estimate")
	f.Float64("rps", 0, "Maximum LLM requests per second (0 = unlimited)")
	f.Int("max-content-chars", config.DefaultMaxContentChars, "Page characters sent to the LLM (0 = all)")
	f.Duration("llm-timeout", config.DefaultLLMTimeout, "Timeout of one extraction call")

	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout of one page fetch")
	f.Duration("delay", config.DefaultCrawlDelay, "Pause between two page fetches")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent of page requests")
	f.Bool("respect-robots", false, "Honour robots.txt")
	f.Bool("render-js", false, "Load pages in headless Chrome")
	f.Duration("render-wait", config.DefaultRenderWait, "Time a rendered page is given to settle")
}

// buildConfig creates a Config from defaults, the configuration file, the
// environment and the flags the user set explicitly, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")
	cfg.EnvFile = getStringFlag(cmd, "env-file")

	// An explicit configuration file must exist; the default ones are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := config.LoadEnvFile(cfg.EnvFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfg.EnvFile, err)
	}
	cfg.APIKey = config.APIKeyFromEnv()

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies the explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	var err error
	set := func(name string, apply func() error) {
		if err != nil || f.Lookup(name) == nil || !f.Changed(name) {
			return
		}
		err = apply()
	}

	set("fields", func() error {
		fields, e := f.GetStringSlice("fields")
		cfg.Fields = normalizeFields(fields)
		return e
	})
	set("max-pages", func() (e error) { cfg.MaxFollowPages, e = f.GetInt("max-pages"); return })
	set("contact-keywords", func() (e error) { cfg.ContactKeywords, e = f.GetStringSlice("contact-keywords"); return })
	set("concurrency", func() (e error) { cfg.Concurrency, e = f.GetInt("concurrency"); return })
	set("model", func() (e error) { cfg.Model, e = f.GetString("model"); return })
	set("base-url", func() (e error) { cfg.BaseURL, e = f.GetString("base-url"); return })
	set("price", func() (e error) { cfg.PricePerMillion, e = f.GetFloat64("price"); return })
	set("rps", func() (e error) { cfg.RequestsPerSecond, e = f.GetFloat64("rps"); return })
	set("max-content-chars", func() (e error) { cfg.MaxContentChars, e = f.GetInt("max-content-chars"); return })
	set("llm-timeout", func() (e error) { cfg.LLMTimeout, e = f.GetDuration("llm-timeout"); return })
	set("timeout", func() (e error) { cfg.Timeout, e = f.GetDuration("timeout"); return })
	set("delay", func() (e error) { cfg.CrawlDelay, e = f.GetDuration("delay"); return })
	set("user-agent", func() (e error) { cfg.UserAgent, e = f.GetString("user-agent"); return })
	set("respect-robots", func() (e error) { cfg.RespectRobots, e = f.GetBool("respect-robots"); return })
	set("render-js", func() (e error) { cfg.RenderJS, e = f.GetBool("render-js"); return })
	set("render-wait", func() (e error) { cfg.RenderWait, e = f.GetDuration("render-wait"); return })
	set("output", func() (e error) { cfg.OutputFile, e = f.GetString("output"); return })
	set("json", func() (e error) { cfg.JSONReport, e = f.GetBool("json"); return })
	set("markdown", func() (e error) { cfg.MarkdownReport, e = f.GetBool("markdown"); return })
	set("report", func() (e error) { cfg.ReportFile, e = f.GetString("report"); return })
	set("listen", func() (e error) { cfg.Listen, e = f.GetString("listen"); return })

	return err
}

// normalizeFields trims and lowercases field names and drops empty ones.
func normalizeFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// getBoolFlag retrieves a flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag retrieves a flag from the command or the root's persistent flags.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}
