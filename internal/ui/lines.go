package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/magicscraper/internal/model"
	"github.com/nao1215/magicscraper/internal/pipeline"
)

// LineReporter prints progress events as plain lines.
type LineReporter struct {
	mu    sync.Mutex
	out   io.Writer
	price float64
}

// NewLineReporter creates a LineReporter writing to out.
func NewLineReporter(out io.Writer, pricePerMillion float64) *LineReporter {
	return &LineReporter{out: out, price: pricePerMillion}
}

// Handle prints one event.
func (r *LineReporter) Handle(e pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case pipeline.EventStarted:
		fmt.Fprintln(r.out, e.Status())
	case pipeline.EventCompleted:
		status := "unknown"
		if e.Result != nil {
			status = e.Result.Status()
		}
		fmt.Fprintf(r.out, "Processed %d of %d URLs (%d%%) [%s] tokens: %d (~$%.4f)\n",
			e.Processed, e.Total, e.Percent(), status,
			e.TotalTokens, model.EstimateCost(e.TotalTokens, r.price))
	}
}
