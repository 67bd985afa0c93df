package llm

import "errors"

var (
	// ErrEmptyChoices is returned when the completion has no choices.
	ErrEmptyChoices = errors.New("completion returned no choices")

	// ErrNoJSONObject is returned when the reply contains no JSON object.
	ErrNoJSONObject = errors.New("reply contains no JSON object")

	// ErrMissingAPIKey is returned when the client is built without a key.
	ErrMissingAPIKey = errors.New("API key is required")
)
