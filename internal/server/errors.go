package server

import "errors"

var (
	// ErrNoFile is returned when the upload form carries no CSV file.
	ErrNoFile = errors.New("no file uploaded: choose a CSV file with a url column")

	// ErrJobNotFinished is returned when results of a running job are requested.
	ErrJobNotFinished = errors.New("job is still running")
)
