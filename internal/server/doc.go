// Package server is the browser front-end.
//
// Users upload a CSV table with a url column, pick the fields to extract and
// follow the run on a page that refreshes itself until the job is over. The
// result table can then be downloaded as CSV or as a Markdown report. Jobs
// live in memory for the lifetime of the process.
package server
