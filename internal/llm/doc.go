// Package llm extracts structured company fields from page content with
// an OpenAI-compatible chat-completion API (Groq by default).
//
// Every call sends the page content together with the values gathered so
// far, asks for a single JSON object keyed by the requested fields and
// reports the token usage of the call. Values the model could not find are
// returned as model.NotFound.
package llm
