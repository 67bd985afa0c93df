package model

import (
	"sync"
	"time"
)

// Result is the outcome of the extraction loop for one input URL.
//
// A Result is owned by the pipeline that fills it. The visited set is
// guarded by a mutex so that progress observers may read a Result while
// another goroutine is still working on a different one.
type Result struct {
	// OriginalURL is the normalized input URL.
	OriginalURL string `json:"original_url"`

	// Fields are the field names requested for this run, in display order.
	Fields []string `json:"fields"`

	// Record is the master record.
	Record Record `json:"record"`

	// TokensUsed is the sum of the token usage of every extraction call.
	TokensUsed int `json:"tokens_used"`

	// Visited lists the successfully fetched pages in fetch order.
	Visited []string `json:"visited"`

	// FailedPages counts follow-up pages that could not be fetched.
	FailedPages int `json:"failed_pages,omitempty"`

	// Complete is true once every field has been filled.
	Complete bool `json:"complete"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Errors holds the non-fatal errors met while processing the URL.
	Errors []string `json:"errors,omitempty"`

	// TimedOut is true when processing was interrupted by cancellation.
	TimedOut bool `json:"timed_out,omitempty"`

	// StartedAt and FinishedAt bracket the processing of this URL.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Homepage is the fetched homepage. It feeds link discovery and is
	// not serialized.
	Homepage *Page `json:"-"`

	mu       sync.Mutex
	visited  map[string]bool
	contents map[string]bool
}

// NewResult creates a Result whose master record has every field set to
// NotFound.
func NewResult(originalURL string, fields []string) *Result {
	return &Result{
		OriginalURL:    originalURL,
		Fields:         fields,
		Record:         NewRecord(fields),
		Visited:        make([]string, 0),
		PerformedSteps: make([]string, 0),
		StartedAt:      time.Now(),
		visited:        make(map[string]bool),
		contents:       make(map[string]bool),
	}
}

// MarkVisited records a page as visited.
// It returns false when the page had been visited before.
func (r *Result) MarkVisited(pageURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := VisitKey(pageURL)
	if r.visited[key] {
		return false
	}
	r.visited[key] = true
	r.Visited = append(r.Visited, pageURL)
	return true
}

// HasVisited reports whether pageURL has been visited.
func (r *Result) HasVisited(pageURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visited[VisitKey(pageURL)]
}

// SeenContent reports whether content with this hash was already
// extracted. An empty hash is never considered seen.
func (r *Result) SeenContent(hash string) bool {
	if hash == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contents[hash]
}

// MarkContent records that content with this hash has been extracted.
func (r *Result) MarkContent(hash string) {
	if hash == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contents[hash] = true
}

// Merge folds an extraction update into the master record and refreshes
// Complete.
func (r *Result) Merge(update Record) {
	r.Record.Merge(update, r.Fields)
	r.Complete = r.Record.IsComplete(r.Fields)
}

// IsComplete reports whether every requested field has been filled.
func (r *Result) IsComplete() bool {
	return r.Record.IsComplete(r.Fields)
}

// AddTokens adds the token usage of one extraction call.
func (r *Result) AddTokens(n int) {
	if n > 0 {
		r.TokensUsed += n
	}
}

// AddError records a non-fatal error.
func (r *Result) AddError(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err.Error())
}

// Failed reports whether nothing could be fetched for this URL.
func (r *Result) Failed() bool {
	return len(r.Visited) == 0 && len(r.Errors) > 0
}

// Status returns a short machine-friendly status: "complete", "partial",
// "failed" or "cancelled".
func (r *Result) Status() string {
	switch {
	case r.TimedOut:
		return "cancelled"
	case r.Complete:
		return "complete"
	case r.Failed():
		return "failed"
	default:
		return "partial"
	}
}

// Finish stamps the end time and refreshes Complete.
func (r *Result) Finish() {
	r.FinishedAt = time.Now()
	r.Complete = r.IsComplete()
}

// Duration returns how long processing took.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
