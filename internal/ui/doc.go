// Package ui is the terminal front-end of a scraping run.
//
// Model is a bubbletea model fed with pipeline progress events. It shows a
// progress bar, the URL being crawled, the token usage with its estimated
// cost and, once the run is over, the result and fill-rate tables.
// LineReporter is the plain fallback used when output is not a terminal.
package ui
