package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// URLColumn is the header of the column holding company websites.
const URLColumn = "url"

// utf8BOM is written by spreadsheet programs at the start of CSV exports.
const utf8BOM = "\ufeff"

// ReadURLs reads the url column of a CSV table.
// The header match is case-insensitive and ignores surrounding space.
// Blank cells are skipped; the remaining values keep their row order and
// are returned as written, without normalization.
func ReadURLs(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoURLs
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
		if strings.EqualFold(name, URLColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoURLColumn
	}

	urls := make([]string, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			urls = append(urls, v)
		}
	}

	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

// ReadURLFile opens a CSV file and reads its url column.
func ReadURLFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	urls, err := ReadURLs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return urls, nil
}

// Preview returns at most n URLs from the start of the list.
func Preview(urls []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(urls) <= n {
		return urls
	}
	return urls[:n]
}
