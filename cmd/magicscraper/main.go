// Package main provides the entry point for the Magic Scraper CLI.
//
// Magic Scraper crawls company websites listed in a CSV table and uses an
// LLM to extract contact and company fields into one record per site.
//
// Usage:
//
//	magicscraper run companies.csv
//	magicscraper serve
//
// See --help for all available options.
package main

// main is the entry point for Magic Scraper.
func main() {
	Execute()
}
