package model

import (
	"time"
)

// TokensPerMillion is the unit LLM prices are quoted in.
const TokensPerMillion = 1_000_000

// Batch is the outcome of a whole run over an input table.
type Batch struct {
	// Model is the name of the LLM used for extraction.
	Model string `json:"model"`

	// PricePerMillion is the price in USD per one million tokens.
	PricePerMillion float64 `json:"price_per_million"`

	// Fields are the requested fields in display order.
	Fields []string `json:"fields"`

	// Results are the per-URL results in input order.
	Results []*Result `json:"results"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the wall time of the whole run.
	Elapsed time.Duration `json:"elapsed"`
}

// FieldFillRate is the fill statistic of one field across a batch.
type FieldFillRate struct {
	Field   string  `json:"field"`
	Filled  int     `json:"filled"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// EstimateCost returns the price in USD of the given token count.
func EstimateCost(tokens int, pricePerMillion float64) float64 {
	return float64(tokens) / TokensPerMillion * pricePerMillion
}

// ProgressPercent returns the integer completion percentage after done of
// total items. It is 0 for an empty run and never exceeds 100.
func ProgressPercent(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}

// TotalTokens returns the token usage of the whole batch.
func (b *Batch) TotalTokens() int {
	total := 0
	for _, r := range b.Results {
		total += r.TokensUsed
	}
	return total
}

// EstimatedCost returns the price in USD of the batch's token usage.
func (b *Batch) EstimatedCost() float64 {
	return EstimateCost(b.TotalTokens(), b.PricePerMillion)
}

// CompleteCount returns how many results have every field filled.
func (b *Batch) CompleteCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Complete {
			n++
		}
	}
	return n
}

// FillRates returns the fill statistic of every requested field.
// A field's rate is the share of results where it is not NotFound.
func (b *Batch) FillRates() []FieldFillRate {
	rates := make([]FieldFillRate, 0, len(b.Fields))
	n := len(b.Results)
	for _, f := range b.Fields {
		filled := 0
		for _, r := range b.Results {
			if r.Record.Filled(f) {
				filled++
			}
		}
		rate := FieldFillRate{Field: f, Filled: filled, Total: n}
		if n > 0 {
			rate.Percent = float64(filled) / float64(n) * 100
		}
		rates = append(rates, rate)
	}
	return rates
}

// FilledCount returns the number of filled values across all results and fields.
func (b *Batch) FilledCount() int {
	total := 0
	for _, rate := range b.FillRates() {
		total += rate.Filled
	}
	return total
}

// OverallFillRate returns the share of filled values across all results
// and fields, as a percentage.
func (b *Batch) OverallFillRate() float64 {
	cells := len(b.Results) * len(b.Fields)
	if cells == 0 {
		return 0
	}
	return float64(b.FilledCount()) / float64(cells) * 100
}

// ElapsedMinutes returns the run's wall time in minutes.
func (b *Batch) ElapsedMinutes() float64 {
	return b.Elapsed.Minutes()
}
