// Package measurement validates and stores environmental readings
// (temperature, relative humidity and the ITH heat-stress index).
//
// ParseReading is the gate every uplink passes through: values must be
// numeric and inside the physical bounds, or the whole reading is rejected
// with ErrInvalidReading. Stored measurements are append-only.
package measurement
