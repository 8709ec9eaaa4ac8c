package ingest

import (
	"context"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
)

// TelemetryPublisher publishes a device's latest reading.
// Satisfied by *mqtt.Client.
type TelemetryPublisher interface {
	PublishTelemetry(t mqtt.Telemetry) error
}

// MQTTSink publishes each measurement, retained, on the device's telemetry topic.
// Measurements without a device EUI are not published.
type MQTTSink struct {
	pub TelemetryPublisher
}

// NewMQTTSink creates an MQTT sink.
func NewMQTTSink(pub TelemetryPublisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(_ context.Context, rec Record) error {
	if rec.DevEUI == "" {
		return nil
	}
	m := rec.Measurement
	return s.pub.PublishTelemetry(mqtt.Telemetry{
		MeasurementID: m.ID,
		SensorID:      m.SensorID,
		DevEUI:        rec.DevEUI,
		Temperature:   m.Temperature,
		Humidity:      m.Humidity,
		ITH:           m.ITH,
		Timestamp:     m.Timestamp,
	})
}

// ReadingWriter queues a reading for a time-series store.
// Satisfied by *influxdb.Client.
type ReadingWriter interface {
	WriteReading(r influxdb.Reading)
}

// InfluxSink mirrors measurements into InfluxDB. Writes are batched by the
// client, so Publish never fails; batch errors reach the client's callback.
type InfluxSink struct {
	w ReadingWriter
}

// NewInfluxSink creates an InfluxDB sink.
func NewInfluxSink(w ReadingWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Publish(_ context.Context, rec Record) error {
	m := rec.Measurement
	s.w.WriteReading(influxdb.Reading{
		DevEUI:        rec.DevEUI,
		DeviceID:      rec.DeviceID,
		ApplicationID: rec.ApplicationID,
		Temperature:   m.Temperature,
		Humidity:      m.Humidity,
		ITH:           m.ITH,
		Time:          m.Timestamp,
	})
	return nil
}

// MeasurementBroadcaster fans a stored measurement out to live viewers.
// Satisfied by *api.Hub.
type MeasurementBroadcaster interface {
	PublishMeasurement(m *measurement.Measurement)
}

// StreamSink pushes measurements to connected WebSocket viewers.
type StreamSink struct {
	b MeasurementBroadcaster
}

// NewStreamSink creates a live-stream sink.
func NewStreamSink(b MeasurementBroadcaster) *StreamSink {
	return &StreamSink{b: b}
}

func (s *StreamSink) Name() string { return "websocket" }

func (s *StreamSink) Publish(_ context.Context, rec Record) error {
	s.b.PublishMeasurement(rec.Measurement)
	return nil
}
