package measurement

import "time"

// Measurement is a stored reading, matching the mediciones table.
type Measurement struct {
	ID       int64   `json:"id"`
	SensorID *int64  `json:"id_sensor"`
	DevEUI   *string `json:"dev_eui,omitempty"`
	Reading
	Timestamp time.Time `json:"fecha"`
}

// Filter narrows a Latest query. The zero Filter matches every measurement.
type Filter struct {
	// DevEUI restricts to the sensor carrying this canonical EUI.
	DevEUI string

	// SensorID restricts to one sensor id.
	SensorID *int64
}
