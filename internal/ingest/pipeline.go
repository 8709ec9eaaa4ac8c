package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/ith-monitor-core/internal/measurement"
	"github.com/nerrad567/ith-monitor-core/internal/observability"
)

// Logger defines the logging interface used by the pipeline.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SensorResolver maps a canonical EUI to a sensor id, registering unknown
// devices. Satisfied by *sensor.Registry.
type SensorResolver interface {
	ResolveOrCreate(ctx context.Context, eui string) (id int64, created bool, err error)
}

// MeasurementStore persists accepted readings.
// Satisfied by *measurement.SQLRepository.
type MeasurementStore interface {
	Insert(ctx context.Context, sensorID *int64, r measurement.Reading) (*measurement.Measurement, error)
}

// Record is what sinks receive for every stored measurement.
type Record struct {
	DevEUI        string
	DeviceID      string
	ApplicationID string
	Measurement   *measurement.Measurement
}

// Sink receives stored measurements on a best-effort basis.
// A sink error never fails the ingestion that produced the record.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec Record) error
}

// Deps holds the pipeline's collaborators.
type Deps struct {
	Sensors      SensorResolver
	Measurements MeasurementStore

	// IdentityPolicy is config.IdentityRequired (default) or config.IdentityOptional.
	IdentityPolicy string

	Sinks   []Sink
	Metrics *observability.Metrics
	Logger  Logger
}

// Result describes an accepted uplink.
type Result struct {
	Measurement   *measurement.Measurement
	DevEUI        string
	SensorCreated bool
}

// Pipeline turns webhook bodies into stored measurements.
// It is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	sensors         SensorResolver
	measurements    MeasurementStore
	requireIdentity bool
	sinks           []Sink
	metrics         *observability.Metrics
	logger          Logger
}

// New creates a pipeline from deps.
func New(deps Deps) (*Pipeline, error) {
	if deps.Sensors == nil {
		return nil, errors.New("ingest: sensor resolver is required")
	}
	if deps.Measurements == nil {
		return nil, errors.New("ingest: measurement store is required")
	}

	require := true
	switch deps.IdentityPolicy {
	case "", config.IdentityRequired:
	case config.IdentityOptional:
		require = false
	default:
		return nil, fmt.Errorf("ingest: unknown identity policy %q", deps.IdentityPolicy)
	}

	p := &Pipeline{
		sensors:         deps.Sensors,
		measurements:    deps.Measurements,
		requireIdentity: require,
		sinks:           deps.Sinks,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	return p, nil
}

// Ingest processes one webhook body:
//
//  1. decode the uplink and its decoded payload
//  2. normalise the device EUI (required or optional per policy)
//  3. validate the reading
//  4. resolve or auto-register the sensor
//  5. store the measurement
//  6. fan out to sinks
//
// Failures in steps 1 to 3 are permanent (see Permanent); failures in 4 and 5
// wrap ErrStorage.
func (p *Pipeline) Ingest(ctx context.Context, body []byte) (*Result, error) {
	start := time.Now()

	res, up, err := p.ingest(ctx, body)
	p.observe(res, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	p.fanOut(ctx, Record{
		DevEUI:        res.DevEUI,
		DeviceID:      up.EndDeviceIDs.DeviceID,
		ApplicationID: up.EndDeviceIDs.ApplicationIDs.ApplicationID,
		Measurement:   res.Measurement,
	})
	return res, nil
}

func (p *Pipeline) ingest(ctx context.Context, body []byte) (*Result, *Uplink, error) {
	up, err := DecodeUplink(body)
	if err != nil {
		return nil, nil, err
	}

	eui := up.EUI()
	if eui == "" && p.requireIdentity {
		return nil, nil, ErrMissingIdentifier
	}

	reading, err := measurement.ParseReading(up.Field("temperatura"), up.Field("humedad"), up.Field("ith"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidReading, err)
	}

	res := &Result{DevEUI: eui}

	var sensorID *int64
	if eui != "" {
		id, created, err := p.sensors.ResolveOrCreate(ctx, eui)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		sensorID = &id
		res.SensorCreated = created
	}

	m, err := p.measurements.Insert(ctx, sensorID, reading)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if eui != "" {
		m.DevEUI = &eui
	}
	res.Measurement = m

	p.logger.Debug("measurement stored",
		"id", m.ID,
		"dev_eui", eui,
		"ith", reading.ITH,
		"sensor_created", res.SensorCreated,
	)
	return res, up, nil
}

func (p *Pipeline) fanOut(ctx context.Context, rec Record) {
	for _, s := range p.sinks {
		if err := s.Publish(ctx, rec); err != nil {
			p.logger.Warn("sink publish failed", "sink", s.Name(), "dev_eui", rec.DevEUI, "error", err)
			if p.metrics != nil {
				p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
		}
	}
}

func (p *Pipeline) observe(res *Result, err error, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.WebhookRequests.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return
	}
	p.metrics.IngestDuration.Observe(elapsed.Seconds())
	if res.SensorCreated {
		p.metrics.SensorsAutoRegistered.Inc()
	}
	if res.DevEUI != "" {
		p.metrics.LastITH.WithLabelValues(res.DevEUI).Set(res.Measurement.ITH)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeStored
	case errors.Is(err, ErrMalformedPayload):
		return observability.OutcomeMalformed
	case errors.Is(err, ErrMissingIdentifier):
		return observability.OutcomeMissingIdentifier
	case errors.Is(err, ErrInvalidReading):
		return observability.OutcomeInvalidReading
	default:
		return observability.OutcomeStorageError
	}
}
