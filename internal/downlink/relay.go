package downlink

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/ith-monitor-core/internal/observability"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// Logger defines the logging interface used by the relay.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// SensorLookup finds a sensor by EUI in any notation.
// Satisfied by *sensor.Registry.
type SensorLookup interface {
	GetByEUI(ctx context.Context, eui string) (*sensor.Sensor, error)
}

// Pusher submits a downlink frame. Satisfied by *Client.
type Pusher interface {
	Push(ctx context.Context, f Frame) error
}

// Receipt identifies an accepted downlink.
type Receipt struct {
	SensorID      int64  `json:"id_sensor"`
	DevEUI        string `json:"dev_eui"`
	ApplicationID string `json:"application_id"`
	DeviceID      string `json:"device_id"`
	CorrelationID string `json:"correlation_id"`
}

// Relay translates an operator command for a sensor into a network-server
// downlink. Each Send makes at most one outbound call.
type Relay struct {
	sensors SensorLookup
	pusher  Pusher
	metrics *observability.Metrics
	logger  Logger
}

// NewRelay creates a relay. metrics may be nil.
func NewRelay(sensors SensorLookup, pusher Pusher, metrics *observability.Metrics) *Relay {
	return &Relay{sensors: sensors, pusher: pusher, metrics: metrics, logger: noopLogger{}}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Send relays cmd to the sensor carrying eui.
//
// Errors: sensor.ErrInvalidEUI, ErrEmptyCommand, sensor.ErrSensorNotFound,
// ErrNotLinked (no outbound call), ErrMissingCredential, *UpstreamError, or a
// transport error.
func (r *Relay) Send(ctx context.Context, eui, cmd string) (*Receipt, error) {
	receipt, err := r.send(ctx, eui, cmd)
	r.count(err)
	return receipt, err
}

func (r *Relay) send(ctx context.Context, eui, cmd string) (*Receipt, error) {
	if cmd == "" {
		return nil, ErrEmptyCommand
	}

	s, err := r.sensors.GetByEUI(ctx, eui)
	if err != nil {
		return nil, err
	}

	appID, devID := deref(s.TTNAppID), deref(s.TTNDeviceID)
	if appID == "" || devID == "" {
		r.logger.Warn("downlink refused: sensor has no network-server addressing",
			"dev_eui", s.EUI(), "id_sensor", s.ID)
		return nil, ErrNotLinked
	}

	receipt := &Receipt{
		SensorID:      s.ID,
		DevEUI:        s.EUI(),
		ApplicationID: appID,
		DeviceID:      devID,
		CorrelationID: uuid.NewString(),
	}

	start := time.Now()
	err = r.pusher.Push(ctx, Frame{
		ApplicationID:  appID,
		DeviceID:       devID,
		Payload:        []byte(cmd),
		CorrelationIDs: []string{"ithmonitor:downlink:" + receipt.CorrelationID},
	})
	if r.metrics != nil && !errors.Is(err, ErrMissingCredential) {
		r.metrics.DownlinkDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.logger.Warn("downlink push failed",
			"dev_eui", receipt.DevEUI, "correlation_id", receipt.CorrelationID, "error", err)
		return nil, err
	}

	r.logger.Info("downlink queued",
		"dev_eui", receipt.DevEUI,
		"application_id", appID,
		"device_id", devID,
		"correlation_id", receipt.CorrelationID,
	)
	return receipt, nil
}

func (r *Relay) count(err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.DownlinkRequests.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return observability.DownlinkSent
	case errors.Is(err, ErrEmptyCommand), errors.Is(err, sensor.ErrInvalidEUI):
		return observability.DownlinkInvalid
	case errors.Is(err, sensor.ErrSensorNotFound):
		return observability.DownlinkNotFound
	case errors.Is(err, ErrNotLinked):
		return observability.DownlinkNotLinked
	case errors.Is(err, ErrMissingCredential):
		return observability.DownlinkNoCredential
	case errors.As(err, &upstream):
		return observability.DownlinkUpstreamError
	default:
		return observability.DownlinkTransportError
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
