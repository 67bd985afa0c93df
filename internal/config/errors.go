package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// They are returned by Config.Validate and friends and can be matched with
// errors.Is.
var (
	// ErrNoInput is returned when a run has no input table.
	ErrNoInput = errors.New("no input specified: provide a CSV file with a url column")

	// ErrNoOutput is returned when a run has no results file.
	ErrNoOutput = errors.New("no output file specified")

	// ErrMissingAPIKey is returned when GROQ_API_KEY is neither in the
	// environment nor in the .env file.
	ErrMissingAPIKey = errors.New("missing API key: set " + EnvAPIKey + " in the environment or in a .env file")

	// ErrNoModel is returned when the model name is empty.
	ErrNoModel = errors.New("no model specified")

	// ErrNoBaseURL is returned when the API base URL is empty.
	ErrNoBaseURL = errors.New("no API base URL specified")

	// ErrNoFields is returned when no field is selected.
	ErrNoFields = errors.New("no fields selected: choose at least one field to extract")

	// ErrInvalidField is returned for a field name that is not snake_case.
	ErrInvalidField = errors.New("invalid field name: use lowercase letters, digits and underscores")

	// ErrDuplicateField is returned when a field is selected twice.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxFollowPages is returned when the link budget is negative.
	ErrInvalidMaxFollowPages = errors.New("invalid max follow pages: must be non-negative")

	// ErrInvalidPrice is returned when the token price is negative.
	ErrInvalidPrice = errors.New("invalid price: must be non-negative")

	// ErrInvalidRate is returned when the LLM request rate is negative.
	ErrInvalidRate = errors.New("invalid requests per second: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when a delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxContentChars is returned when the content limit is negative.
	ErrInvalidMaxContentChars = errors.New("invalid max content chars: must be non-negative")
)

// FieldError reports which field failed validation.
type FieldError struct {
	Field string
	Err   error
}

// Error implements error.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Field)
}

// Unwrap returns the sentinel error.
func (e *FieldError) Unwrap() error {
	return e.Err
}
