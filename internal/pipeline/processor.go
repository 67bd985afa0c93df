package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/magicscraper/internal/model"
)

// EventKind identifies a progress event.
type EventKind string

const (
	// EventStarted is emitted when work on a URL begins.
	EventStarted EventKind = "started"

	// EventCompleted is emitted when a URL has been processed.
	EventCompleted EventKind = "completed"
)

// Event reports batch progress to the front-end.
type Event struct {
	// Kind is the event type.
	Kind EventKind

	// Index is the 0-based position of the URL in the input.
	Index int

	// Total is the number of URLs in the batch.
	Total int

	// URL is the normalized URL.
	URL string

	// Result is set for EventCompleted.
	Result *model.Result

	// Processed is the number of URLs finished so far.
	Processed int

	// TotalTokens is the token usage of the batch so far.
	TotalTokens int
}

// Percent returns the integer progress of the batch.
func (e Event) Percent() int {
	return model.ProgressPercent(e.Processed, e.Total)
}

// Status returns the status line shown while a URL is crawled.
func (e Event) Status() string {
	return fmt.Sprintf("Crawling: %s (%d/%d)", e.URL, e.Index+1, e.Total)
}

// Observer is told about every finished result, for example to update
// metrics.
type Observer interface {
	ObserveResult(result *model.Result)
}

// Processor runs the extraction pipeline over a batch of URLs.
// URLs are processed one at a time unless a higher concurrency is set.
type Processor struct {
	// pipelineFactory creates a new pipeline for each URL.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of URLs processed at once.
	concurrency int

	logger    *slog.Logger
	onEvent   func(Event)
	observers []Observer

	model           string
	pricePerMillion float64
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets a custom logger for batch processing.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithConcurrency sets the maximum number of URLs processed at once.
// Default is 1.
func WithConcurrency(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithEventHandler registers a progress callback. Events are delivered one
// at a time, never concurrently.
func WithEventHandler(fn func(Event)) ProcessorOption {
	return func(p *Processor) {
		p.onEvent = fn
	}
}

// WithObserver registers an observer of finished results.
func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithModelInfo records the model name and price on the produced batch.
func WithModelInfo(name string, pricePerMillion float64) ProcessorOption {
	return func(p *Processor) {
		p.model = name
		p.pricePerMillion = pricePerMillion
	}
}

// NewProcessor creates a new Processor.
//
// The pipelineFactory function is called for each URL to create a fresh
// pipeline instance.
func NewProcessor(pipelineFactory func() *Pipeline, opts ...ProcessorOption) *Processor {
	p := &Processor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Process normalizes and processes every URL and returns the batch with
// results in input order.
//
// A failing URL never stops the batch. When ctx is cancelled, URLs not yet
// started are left out of the batch and ctx's error is returned together
// with the partial batch.
func (p *Processor) Process(ctx context.Context, urls, fields []string) (*model.Batch, error) {
	batch := &model.Batch{
		Model:           p.model,
		PricePerMillion: p.pricePerMillion,
		Fields:          fields,
		Results:         make([]*model.Result, len(urls)),
		StartedAt:       time.Now(),
	}
	total := len(urls)

	p.logger.Info("starting batch processing",
		"total_urls", total,
		"concurrency", p.concurrency,
		"fields", fields,
	)

	var (
		mu        sync.Mutex
		processed int
		tokens    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, raw := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			target := model.NormalizeURL(raw)

			mu.Lock()
			p.emit(Event{Kind: EventStarted, Index: i, Total: total, URL: target, Processed: processed, TotalTokens: tokens})
			mu.Unlock()

			result := model.NewResult(target, fields)
			if err := p.pipelineFactory().Execute(gctx, result); err != nil {
				p.logger.Warn("url processing stopped", "url", target, "error", err)
			}
			result.Finish()

			for _, o := range p.observers {
				o.ObserveResult(result)
			}

			mu.Lock()
			batch.Results[i] = result
			processed++
			tokens += result.TokensUsed
			p.emit(Event{Kind: EventCompleted, Index: i, Total: total, URL: target, Result: result, Processed: processed, TotalTokens: tokens})
			mu.Unlock()

			p.logger.Info("url processed",
				"url", target,
				"status", result.Status(),
				"tokens", result.TokensUsed,
				"pages", len(result.Visited),
			)
			return nil
		})
	}

	err := g.Wait()
	batch.Elapsed = time.Since(batch.StartedAt)
	batch.Results = compact(batch.Results)

	p.logger.Info("batch processing complete",
		"processed", len(batch.Results),
		"total_urls", total,
		"elapsed", batch.Elapsed,
	)

	if err == nil {
		err = ctx.Err()
	}
	return batch, err
}

func (p *Processor) emit(e Event) {
	if p.onEvent != nil {
		p.onEvent(e)
	}
}

// compact drops the slots of URLs that were never started.
func compact(results []*model.Result) []*model.Result {
	out := make([]*model.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
