package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
)

type fakePublisher struct {
	got   mqtt.Telemetry
	err   error
	calls int
}

func (p *fakePublisher) PublishTelemetry(t mqtt.Telemetry) error {
	p.calls++
	p.got = t
	return p.err
}

type fakeWriter struct{ got []influxdb.Reading }

func (w *fakeWriter) WriteReading(r influxdb.Reading) { w.got = append(w.got, r) }

type fakeBroadcaster struct{ got []*measurement.Measurement }

func (b *fakeBroadcaster) PublishMeasurement(m *measurement.Measurement) {
	b.got = append(b.got, m)
}

func testRecord() Record {
	id := int64(3)
	return Record{
		DevEUI:        "AABBCC",
		DeviceID:      "galpon-2",
		ApplicationID: "ith-monitor",
		Measurement: &measurement.Measurement{
			ID:        11,
			SensorID:  &id,
			Reading:   measurement.Reading{Temperature: 30, Humidity: 70, ITH: 80.1},
			Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub)
	rec := testRecord()

	require.NoError(t, sink.Publish(context.Background(), rec))
	assert.Equal(t, "mqtt", sink.Name())
	assert.Equal(t, mqtt.Telemetry{
		MeasurementID: 11,
		SensorID:      rec.Measurement.SensorID,
		DevEUI:        "AABBCC",
		Temperature:   30,
		Humidity:      70,
		ITH:           80.1,
		Timestamp:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}, pub.got)

	rec.DevEUI = ""
	require.NoError(t, sink.Publish(context.Background(), rec))
	assert.Equal(t, 1, pub.calls, "unassociated measurements are not published")

	pub.err = errors.New("not connected")
	rec.DevEUI = "AABBCC"
	assert.Error(t, sink.Publish(context.Background(), rec))
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewInfluxSink(w)

	require.NoError(t, sink.Publish(context.Background(), testRecord()))
	assert.Equal(t, "influxdb", sink.Name())
	require.Len(t, w.got, 1)
	assert.Equal(t, influxdb.Reading{
		DevEUI:        "AABBCC",
		DeviceID:      "galpon-2",
		ApplicationID: "ith-monitor",
		Temperature:   30,
		Humidity:      70,
		ITH:           80.1,
		Time:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}, w.got[0])
}

func TestStreamSink(t *testing.T) {
	b := &fakeBroadcaster{}
	sink := NewStreamSink(b)
	rec := testRecord()

	require.NoError(t, sink.Publish(context.Background(), rec))
	assert.Equal(t, "websocket", sink.Name())
	require.Len(t, b.got, 1)
	assert.Same(t, rec.Measurement, b.got[0])
}
