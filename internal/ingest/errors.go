package ingest

import "errors"

// Permanent failures (the sender must not retry) and the transient storage
// failure (the sender may retry).
var (
	// ErrMalformedPayload is returned when the body is not an uplink or
	// carries no decoded payload.
	ErrMalformedPayload = errors.New("ingest: malformed payload")

	// ErrMissingIdentifier is returned when the uplink has no usable device
	// EUI and the identity policy requires one.
	ErrMissingIdentifier = errors.New("ingest: missing device identifier")

	// ErrInvalidReading is returned when the decoded reading fails validation.
	ErrInvalidReading = errors.New("ingest: invalid reading")

	// ErrStorage is returned when sensor resolution or measurement
	// persistence fails.
	ErrStorage = errors.New("ingest: storage failure")
)

// Permanent reports whether err is a payload or validation failure that
// retrying cannot fix.
func Permanent(err error) bool {
	return errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrMissingIdentifier) ||
		errors.Is(err, ErrInvalidReading)
}
