// Package log provides secure logging built on top of the standard slog
// package.
//
// This package extends slog to provide:
//   - Automatic masking of API keys, bearer tokens and cookies
//   - Readable, colored terminal output through charmbracelet/log
//   - JSON output for log aggregation
//   - Verbose mode switching the level from Warn to Debug
//
// The Groq API key travels in the Authorization header of every extraction
// call. Even in verbose mode it never reaches the log output.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Debug("extraction done",
//	    "url", "https://example.com",
//	    "total_tokens", 1234,           // numbers are kept
//	    "api_key", "gsk_...",           // masked
//	)
//	slog.SetDefault(logger)
package log
