package downlink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLinked is returned when the sensor lacks its network-server
	// application id or device id. No outbound call is made.
	ErrNotLinked = errors.New("downlink: sensor not linked to network server")

	// ErrMissingCredential is returned when no network-server API key is configured.
	ErrMissingCredential = errors.New("downlink: network server api key not configured")

	// ErrEmptyCommand is returned for an empty command string.
	ErrEmptyCommand = errors.New("downlink: command is empty")
)

// UpstreamError is returned when the network server answers a push with a
// non-2xx status.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("downlink: network server returned %d: %s", e.Status, e.Body)
}
