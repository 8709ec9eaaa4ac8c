package measurement

import "errors"

var (
	// ErrInvalidReading is returned when a reading is non-numeric or out of range.
	ErrInvalidReading = errors.New("measurement: invalid reading")

	// ErrNotFound is returned when no measurement matches a query.
	ErrNotFound = errors.New("measurement: not found")
)
