package sensor

import "errors"

// Domain errors for the sensor package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, sensor.ErrSensorNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSensorNotFound is returned when no sensor matches the selector or EUI.
	ErrSensorNotFound = errors.New("sensor: not found")

	// ErrSensorExists is returned when creating a sensor whose EUI is already registered.
	ErrSensorExists = errors.New("sensor: already exists")

	// ErrDuplicateIdentity is returned when a metadata update would attach an
	// EUI that already belongs to another sensor. No changes are persisted.
	ErrDuplicateIdentity = errors.New("sensor: duplicate identity")

	// ErrNoSelector is returned when an update names neither an id nor an EUI.
	ErrNoSelector = errors.New("sensor: no selector")

	// ErrInvalidEUI is returned when an EUI normalises to the empty string.
	ErrInvalidEUI = errors.New("sensor: invalid EUI")

	// ErrInvalidMode is returned when a mode other than auto or manual is supplied.
	ErrInvalidMode = errors.New("sensor: invalid mode")

	// ErrInvalidName is returned when a sensor name is empty or too long.
	ErrInvalidName = errors.New("sensor: invalid name")

	// ErrInvalidLabel is returned when a model/area/zone/room label is too long.
	ErrInvalidLabel = errors.New("sensor: invalid label")

	// ErrInvalidAddressing is returned when a network-server application id or
	// device id is missing.
	ErrInvalidAddressing = errors.New("sensor: invalid network-server addressing")

	// ErrInvalidThreshold is returned when an ITH threshold is outside the index range.
	ErrInvalidThreshold = errors.New("sensor: invalid threshold")
)
