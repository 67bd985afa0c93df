package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/magicscraper/internal/config"
	"github.com/nao1215/magicscraper/internal/crawler"
	"github.com/nao1215/magicscraper/internal/llm"
	applog "github.com/nao1215/magicscraper/internal/log"
	"github.com/nao1215/magicscraper/internal/metrics"
	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
)

// app wires configuration to the crawler, the LLM client and the batch
// processor.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newApp(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *app {
	return &app{cfg: cfg, logger: logger, metrics: m}
}

// newLogger creates the process logger from the verbosity flags.
func newLogger(cfg *config.Config) *slog.Logger {
	return applog.New(os.Stderr, cfg.Verbose, cfg.LogJSON)
}

// newExtractor creates the LLM client.
func (a *app) newExtractor() (*llm.Client, error) {
	client, err := llm.New(a.cfg.APIKey,
		llm.WithBaseURL(a.cfg.BaseURL),
		llm.WithModel(a.cfg.Model),
		llm.WithTimeout(a.cfg.LLMTimeout),
		llm.WithRequestsPerSecond(a.cfg.RequestsPerSecond),
		llm.WithMaxContentChars(a.cfg.MaxContentChars),
		llm.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// newFetcher creates the page fetcher. The returned function releases the
// headless browser when one is used.
func (a *app) newFetcher() (*crawler.Fetcher, func()) {
	opts := []crawler.FetcherOption{
		crawler.WithTimeout(a.cfg.Timeout),
		crawler.WithUserAgent(a.cfg.UserAgent),
		crawler.WithMaxBodySize(a.cfg.MaxBodySize),
		crawler.WithDelay(a.cfg.CrawlDelay),
		crawler.WithRespectRobots(a.cfg.RespectRobots),
		crawler.WithLogger(a.logger),
	}
	if a.cfg.Sites != nil {
		opts = append(opts, crawler.WithRequestHeaders(a.cfg.Sites.RequestHeaders))
	}

	release := func() {}
	if a.cfg.RenderJS {
		browser := crawler.NewBrowser(a.cfg.UserAgent, a.cfg.RenderWait)
		opts = append(opts, crawler.WithRenderer(browser))
		release = browser.Close
	}

	return crawler.NewFetcher(opts...), release
}

// process runs the extraction pipeline over urls.
func (a *app) process(ctx context.Context, urls, fields []string, onEvent func(pipeline.Event)) (*model.Batch, error) {
	extractor, err := a.newExtractor()
	if err != nil {
		return nil, err
	}
	fetcher, release := a.newFetcher()
	defer release()

	opts := []pipeline.ProcessorOption{
		pipeline.WithProcessorLogger(a.logger),
		pipeline.WithConcurrency(a.cfg.Concurrency),
		pipeline.WithModelInfo(a.cfg.Model, a.cfg.PricePerMillion),
		pipeline.WithEventHandler(onEvent),
	}
	if a.metrics != nil {
		opts = append(opts, pipeline.WithObserver(a.metrics))
	}

	processor := pipeline.NewProcessor(func() *pipeline.Pipeline {
		return pipeline.NewExtractionPipeline(fetcher, extractor, a.cfg.MaxFollowPages, a.cfg.ContactKeywords, a.logger)
	}, opts...)

	return processor.Process(ctx, urls, fields)
}
