// Package pipeline runs the per-URL extraction loop and the batch around it.
//
// For one URL the pipeline fetches the homepage, extracts the requested
// fields into a master record and, while fields are still missing, visits
// up to a fixed number of internal links with contact pages first. Each
// stage is a Step working on a model.Result.
//
// Processor runs a fresh pipeline for every URL of a batch, sequentially by
// default or with bounded concurrency through errgroup, and reports
// progress events to the front-end.
package pipeline
