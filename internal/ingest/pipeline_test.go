package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
	"github.com/nerrad567/ith-monitor-core/internal/observability"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

const validUplink = `{
	"end_device_ids": {
		"device_id": "galpon-1",
		"application_ids": {"application_id": "ith-monitor"},
		"dev_eui": "70-b3-d5-7e-d0-03-ab-cd"
	},
	"received_at": "2026-03-01T09:00:00Z",
	"uplink_message": {
		"f_port": 2,
		"decoded_payload": {"temperatura": 24.5, "humedad": 61, "ith": 72.4}
	}
}`

type fixture struct {
	pipeline     *Pipeline
	sensors      *sensor.SQLRepository
	measurements *measurement.SQLRepository
	metrics      *observability.Metrics
	sink         *recordingSink
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

	db := dbtest.SQLite(t)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		sensors:      sensor.NewSQLRepository(db).WithClock(clock),
		measurements: measurement.NewSQLRepository(db).WithClock(clock),
		metrics:      observability.NewMetricsForTesting(),
		sink:         &recordingSink{name: "recording"},
	}

	pipeline, err := New(Deps{
		Sensors:        sensor.NewRegistry(f.sensors),
		Measurements:   f.measurements,
		IdentityPolicy: policy,
		Sinks:          []Sink{f.sink},
		Metrics:        f.metrics,
	})
	require.NoError(t, err)
	f.pipeline = pipeline
	return f
}

type recordingSink struct {
	name    string
	err     error
	mu      sync.Mutex
	records []Record
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{Measurements: &measurement.SQLRepository{}})
	assert.Error(t, err, "missing sensor resolver")

	_, err = New(Deps{Sensors: sensor.NewRegistry(nil)})
	assert.Error(t, err, "missing measurement store")

	_, err = New(Deps{
		Sensors:        sensor.NewRegistry(nil),
		Measurements:   &measurement.SQLRepository{},
		IdentityPolicy: "sometimes",
	})
	assert.ErrorContains(t, err, "identity policy")
}

func TestIngest_NewDevice(t *testing.T) {
	f := newFixture(t, config.IdentityRequired)
	ctx := context.Background()

	res, err := f.pipeline.Ingest(ctx, []byte(validUplink))
	require.NoError(t, err)

	assert.True(t, res.SensorCreated)
	assert.Equal(t, "70B3D57ED003ABCD", res.DevEUI)
	require.NotNil(t, res.Measurement.SensorID)
	assert.Equal(t, measurement.Reading{Temperature: 24.5, Humidity: 61, ITH: 72.4}, res.Measurement.Reading)

	s, err := f.sensors.GetByEUI(ctx, "70B3D57ED003ABCD")
	require.NoError(t, err)
	assert.Equal(t, *res.Measurement.SensorID, s.ID)
	assert.Equal(t, "Sensor 70B3D57ED003ABCD", s.Name)

	latest, err := f.measurements.Latest(ctx, measurement.Filter{DevEUI: "70B3D57ED003ABCD"})
	require.NoError(t, err)
	assert.Equal(t, res.Measurement.ID, latest.ID)

	require.Len(t, f.sink.records, 1)
	rec := f.sink.records[0]
	assert.Equal(t, "galpon-1", rec.DeviceID)
	assert.Equal(t, "ith-monitor", rec.ApplicationID)
	assert.Equal(t, res.Measurement.ID, rec.Measurement.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookRequests.WithLabelValues(observability.OutcomeStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SensorsAutoRegistered))
	assert.Equal(t, 72.4, testutil.ToFloat64(f.metrics.LastITH.WithLabelValues("70B3D57ED003ABCD")))
}

func TestIngest_KnownDeviceIsIdempotent(t *testing.T) {
	f := newFixture(t, config.IdentityRequired)
	ctx := context.Background()

	first, err := f.pipeline.Ingest(ctx, []byte(validUplink))
	require.NoError(t, err)
	second, err := f.pipeline.Ingest(ctx, []byte(validUplink))
	require.NoError(t, err)

	assert.False(t, second.SensorCreated)
	assert.Equal(t, *first.Measurement.SensorID, *second.Measurement.SensorID)
	assert.NotEqual(t, first.Measurement.ID, second.Measurement.ID)

	sensors, err := f.sensors.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sensors, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SensorsAutoRegistered))
}

func TestIngest_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		outcome string
	}{
		{
			name:    "not json",
			body:    `{"end_device_ids":`,
			wantErr: ErrMalformedPayload,
			outcome: observability.OutcomeMalformed,
		},
		{
			name:    "no uplink message",
			body:    `{"end_device_ids":{"dev_eui":"AABB"}}`,
			wantErr: ErrMalformedPayload,
			outcome: observability.OutcomeMalformed,
		},
		{
			name:    "no decoded payload",
			body:    `{"end_device_ids":{"dev_eui":"AABB"},"uplink_message":{"f_port":1}}`,
			wantErr: ErrMalformedPayload,
			outcome: observability.OutcomeMalformed,
		},
		{
			name:    "missing eui",
			body:    `{"uplink_message":{"decoded_payload":{"temperatura":20,"humedad":50,"ith":60}}}`,
			wantErr: ErrMissingIdentifier,
			outcome: observability.OutcomeMissingIdentifier,
		},
		{
			name:    "eui reduces to empty",
			body:    `{"end_device_ids":{"dev_eui":"::--"},"uplink_message":{"decoded_payload":{"temperatura":20,"humedad":50,"ith":60}}}`,
			wantErr: ErrMissingIdentifier,
			outcome: observability.OutcomeMissingIdentifier,
		},
		{
			name:    "humidity out of range",
			body:    `{"end_device_ids":{"dev_eui":"AABB"},"uplink_message":{"decoded_payload":{"temperatura":20,"humedad":101,"ith":60}}}`,
			wantErr: ErrInvalidReading,
			outcome: observability.OutcomeInvalidReading,
		},
		{
			name:    "non numeric ith",
			body:    `{"end_device_ids":{"dev_eui":"AABB"},"uplink_message":{"decoded_payload":{"temperatura":20,"humedad":50,"ith":"72"}}}`,
			wantErr: ErrInvalidReading,
			outcome: observability.OutcomeInvalidReading,
		},
		{
			name:    "missing field",
			body:    `{"end_device_ids":{"dev_eui":"AABB"},"uplink_message":{"decoded_payload":{"temperatura":20,"humedad":50}}}`,
			wantErr: ErrInvalidReading,
			outcome: observability.OutcomeInvalidReading,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.IdentityRequired)
			ctx := context.Background()

			_, err := f.pipeline.Ingest(ctx, []byte(tt.body))
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, Permanent(err))

			_, err = f.measurements.Latest(ctx, measurement.Filter{})
			assert.ErrorIs(t, err, measurement.ErrNotFound, "nothing may be stored")
			sensors, _ := f.sensors.List(ctx)
			assert.Empty(t, sensors, "no sensor may be registered")
			assert.Empty(t, f.sink.records)

			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookRequests.WithLabelValues(tt.outcome)))
		})
	}
}

func TestIngest_InvalidReadingWrapsCause(t *testing.T) {
	f := newFixture(t, config.IdentityRequired)

	_, err := f.pipeline.Ingest(context.Background(),
		[]byte(`{"end_device_ids":{"dev_eui":"AABB"},"uplink_message":{"decoded_payload":{"temperatura":90,"humedad":50,"ith":60}}}`))

	assert.ErrorIs(t, err, ErrInvalidReading)
	assert.ErrorIs(t, err, measurement.ErrInvalidReading)
}

func TestIngest_OptionalIdentity(t *testing.T) {
	f := newFixture(t, config.IdentityOptional)
	ctx := context.Background()

	res, err := f.pipeline.Ingest(ctx,
		[]byte(`{"uplink_message":{"decoded_payload":{"temperatura":20,"humedad":50,"ith":60}}}`))
	require.NoError(t, err)

	assert.Nil(t, res.Measurement.SensorID)
	assert.Empty(t, res.DevEUI)

	latest, err := f.measurements.Latest(ctx, measurement.Filter{})
	require.NoError(t, err)
	assert.Equal(t, res.Measurement.ID, latest.ID)
	assert.Nil(t, latest.SensorID)

	sensors, _ := f.sensors.List(ctx)
	assert.Empty(t, sensors)
}

type failingResolver struct{}

func (failingResolver) ResolveOrCreate(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("database is locked")
}

type failingStore struct{}

func (failingStore) Insert(context.Context, *int64, measurement.Reading) (*measurement.Measurement, error) {
	return nil, errors.New("disk full")
}

type fixedResolver struct{ id int64 }

func (r fixedResolver) ResolveOrCreate(context.Context, string) (int64, bool, error) {
	return r.id, false, nil
}

func TestIngest_StorageFailures(t *testing.T) {
	metrics := observability.NewMetricsForTesting()

	p, err := New(Deps{Sensors: failingResolver{}, Measurements: failingStore{}, Metrics: metrics})
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), []byte(validUplink))
	require.ErrorIs(t, err, ErrStorage)
	assert.False(t, Permanent(err))
	assert.ErrorContains(t, err, "database is locked")

	p, err = New(Deps{Sensors: fixedResolver{id: 7}, Measurements: failingStore{}, Metrics: metrics})
	require.NoError(t, err)
	_, err = p.Ingest(context.Background(), []byte(validUplink))
	require.ErrorIs(t, err, ErrStorage)
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WebhookRequests.WithLabelValues(observability.OutcomeStorageError)))
}

func TestIngest_SinkFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, config.IdentityRequired)
	broken := &recordingSink{name: "broken", err: errors.New("broker down")}
	f.pipeline.sinks = []Sink{broken, f.sink}

	_, err := f.pipeline.Ingest(context.Background(), []byte(validUplink))
	require.NoError(t, err)

	assert.Len(t, broken.records, 1)
	assert.Len(t, f.sink.records, 1, "later sinks still run")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SinkErrors.WithLabelValues("broken")))
}
