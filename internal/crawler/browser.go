package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser renders pages in a shared headless Chrome so that sites built
// with client-side JavaScript still yield their content.
// Each Render opens a fresh tab; the browser process starts on first use.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	wait time.Duration

	startOnce sync.Once
	startErr  error
}

// NewBrowser prepares a headless Chrome that identifies as userAgent and
// lets each page settle for wait after the body is ready.
func NewBrowser(userAgent string, wait time.Duration) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		wait:          wait,
	}
}

// Render loads pageURL and returns the rendered document and the URL the
// browser ended up on.
func (b *Browser) Render(ctx context.Context, pageURL string) (string, string, error) {
	b.startOnce.Do(func() {
		b.startErr = chromedp.Run(b.browserCtx)
	})
	if b.startErr != nil {
		return "", "", b.startErr
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var document, location string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.wait),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &document, chromedp.ByQuery),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", "", ctxErr
	}
	if err != nil {
		return "", "", err
	}
	return document, location, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.browserCancel()
	b.allocCancel()
}
