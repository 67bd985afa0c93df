// Package metrics exposes Prometheus metrics for scraping runs and the web
// front-end. Every Metrics value owns its registry, so several instances can
// live side by side in one process.
package metrics
