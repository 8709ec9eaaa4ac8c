package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the broker session is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnect wraps a failed or timed-out initial connection.
	ErrConnect = errors.New("mqtt: connect failed")

	// ErrPublish wraps a telemetry publish the broker did not acknowledge.
	ErrPublish = errors.New("mqtt: publish failed")

	// ErrSubscribe wraps a refused command subscription.
	ErrSubscribe = errors.New("mqtt: subscribe failed")
)
