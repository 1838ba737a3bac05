package waterfall

import "errors"

var (
	// ErrNotFound indicates the waterfall ID does not resolve to any record.
	ErrNotFound = errors.New("waterfall not found")

	// ErrNegativeFunds indicates a distribution attempt with negative funds.
	ErrNegativeFunds = errors.New("available funds must not be negative")
)
