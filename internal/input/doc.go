// Package input reads the batch of company websites from an uploaded or
// local CSV table. The table must have a "url" column; other columns are
// ignored.
package input
