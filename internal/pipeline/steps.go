package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/magicscraper/internal/crawler"
	"github.com/nao1215/magicscraper/internal/model"
)

// Fetcher loads one page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*model.Page, error)
}

// Extractor asks the extraction service for the requested fields of one
// page, given the values known so far. It returns the token usage of the
// call.
type Extractor interface {
	Extract(ctx context.Context, content string, existing model.Record, fields []string) (model.Record, int, error)
}

// HomepageStep fetches the input URL and extracts the first version of the
// master record from it.
type HomepageStep struct {
	fetcher   Fetcher
	extractor Extractor
	logger    *slog.Logger
}

// NewHomepageStep creates a homepage step.
func NewHomepageStep(fetcher Fetcher, extractor Extractor, logger *slog.Logger) *HomepageStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HomepageStep{fetcher: fetcher, extractor: extractor, logger: logger}
}

// Name returns the step name.
func (s *HomepageStep) Name() string {
	return "homepage"
}

// Do executes the homepage step. A homepage that cannot be fetched is
// recorded on the result and is not an error of the step.
func (s *HomepageStep) Do(ctx context.Context, result *model.Result) error {
	page, err := s.fetcher.Fetch(ctx, result.OriginalURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("homepage fetch failed", "url", result.OriginalURL, "error", err)
		result.AddError(fmt.Errorf("fetch homepage: %w", err))
		return nil
	}

	result.MarkVisited(result.OriginalURL)
	result.MarkVisited(page.Location())
	result.Homepage = page

	return extractPage(ctx, s.extractor, s.logger, result, page)
}

// FollowLinksStep visits internal links of the homepage, contact pages
// first, until the record is complete or the page budget is spent.
type FollowLinksStep struct {
	fetcher   Fetcher
	extractor Extractor
	maxPages  int
	keywords  []string
	logger    *slog.Logger
}

// NewFollowLinksStep creates a follow-links step that considers at most
// maxPages candidate links.
func NewFollowLinksStep(fetcher Fetcher, extractor Extractor, maxPages int, keywords []string, logger *slog.Logger) *FollowLinksStep {
	if logger == nil {
		logger = slog.Default()
	}
	if keywords == nil {
		keywords = crawler.DefaultContactKeywords
	}
	return &FollowLinksStep{
		fetcher:   fetcher,
		extractor: extractor,
		maxPages:  maxPages,
		keywords:  keywords,
		logger:    logger,
	}
}

// Name returns the step name.
func (s *FollowLinksStep) Name() string {
	return "follow_links"
}

// Do executes the follow-links step.
//
// The candidate list is cut to the page budget before visited links are
// skipped, so a link to the homepage still uses one slot. Pages that fail
// to load are counted and skipped.
func (s *FollowLinksStep) Do(ctx context.Context, result *model.Result) error {
	if result.IsComplete() {
		return nil
	}
	home := result.Homepage
	if home == nil || len(home.InternalLinks) == 0 {
		return nil
	}

	candidates := crawler.PrioritizeLinks(home.InternalLinks, s.keywords, s.maxPages)
	s.logger.Debug("following links",
		"url", result.OriginalURL,
		"candidates", len(candidates),
		"missing", result.Record.Missing(result.Fields),
	)

	for _, link := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if result.HasVisited(link) {
			continue
		}
		if result.IsComplete() {
			break
		}

		page, err := s.fetcher.Fetch(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debug("page fetch failed", "url", link, "error", err)
			result.FailedPages++
			continue
		}

		result.MarkVisited(link)
		result.MarkVisited(page.Location())

		if err := extractPage(ctx, s.extractor, s.logger, result, page); err != nil {
			return err
		}
	}

	return nil
}

// extractPage runs one extraction call for page and merges the answer
// into the master record. Pages without content, or with the same content
// as a page already extracted, cost no call. A failed call does not mark
// the content, so a later page with the same content is tried again.
// Extraction failures are recorded and skipped; only cancellation is
// returned.
func extractPage(ctx context.Context, extractor Extractor, logger *slog.Logger, result *model.Result, page *model.Page) error {
	if !page.HasContent() {
		logger.Debug("page has no content", "url", page.Location())
		return nil
	}
	if result.SeenContent(page.Hash) {
		logger.Debug("duplicate content skipped", "url", page.Location())
		return nil
	}

	update, tokens, err := extractor.Extract(ctx, page.Markdown, result.Record, result.Fields)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("extraction failed", "url", page.Location(), "error", err)
		result.AddError(fmt.Errorf("extract %s: %w", page.Location(), err))
		return nil
	}

	result.MarkContent(page.Hash)
	result.AddTokens(tokens)
	result.Merge(update)

	logger.Debug("record updated",
		"url", page.Location(),
		"tokens", tokens,
		"complete", result.Complete,
	)
	return nil
}

// NewExtractionPipeline builds the per-URL pipeline: homepage first, then
// follow-up links.
func NewExtractionPipeline(fetcher Fetcher, extractor Extractor, maxFollowPages int, keywords []string, logger *slog.Logger) *Pipeline {
	p := New(WithLogger(logger), WithContinueOnError(true))
	p.AddSteps(
		NewHomepageStep(fetcher, extractor, logger),
		NewFollowLinksStep(fetcher, extractor, maxFollowPages, keywords, logger),
	)
	return p
}
