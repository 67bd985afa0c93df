package input

import "errors"

var (
	// ErrNoURLColumn is returned when the table has no url column.
	ErrNoURLColumn = errors.New("the CSV file must contain a 'url' column")

	// ErrNoURLs is returned when the url column holds no value.
	ErrNoURLs = errors.New("the CSV file contains no URLs")
)
