// Package ingest turns network-server uplink webhooks into stored measurements.
//
// A Pipeline decodes The Things Stack v3 uplink JSON, normalises the device
// EUI, validates the decoded reading, resolves (or auto-registers) the sensor
// and appends the measurement. Stored measurements are then handed to optional
// sinks (MQTT telemetry, InfluxDB mirror, WebSocket stream) on a best-effort
// basis: a sink failure is logged and counted, never returned.
//
// Errors split into permanent ones (ErrMalformedPayload, ErrMissingIdentifier,
// ErrInvalidReading) that the sender must not retry, and ErrStorage, which the
// sender may retry.
//
// # Identity policy
//
// Under config.IdentityRequired an uplink without a usable dev_eui is rejected
// with ErrMissingIdentifier. Under config.IdentityOptional it is stored without
// a sensor association. The policy is fixed per deployment.
package ingest
