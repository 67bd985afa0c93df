// Package model defines the data structures shared by the crawler, the
// extraction pipeline, the report writers and the user interfaces.
//
// This package contains the following main types:
//   - Record: the master record of extracted field values for one company
//   - Page: a fetched page with rendered markdown and discovered links
//   - Result: the outcome of the extraction loop for one input URL
//   - Batch: the outcome of a whole run, with token cost and fill rates
//
// Unfilled fields always hold the NotFound literal, never an empty string,
// so that the CSV output and the fill-rate statistics agree.
package model
