package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the device-identity service: it resolves EUIs to sensor ids,
// auto-registering unknown devices, and applies operator metadata updates.
//
// Every resolution reads the store, so rows removed out of band or created
// by another instance are always seen.
type Registry struct {
	repo   Repository
	logger Logger
}

// NewRegistry creates a sensor registry over the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ResolveOrCreate returns the id of the sensor carrying eui, registering a
// placeholder sensor (name "Sensor <EUI>", mode auto, no farm) when none exists.
// created reports whether this call inserted the sensor.
//
// Concurrent first sightings of the same EUI are settled by the store's
// unique constraint: the losing insert re-reads the winner's row.
func (r *Registry) ResolveOrCreate(ctx context.Context, eui string) (id int64, created bool, err error) {
	eui = NormalizeEUI(eui)
	if eui == "" {
		return 0, false, ErrInvalidEUI
	}

	s, err := r.repo.GetByEUI(ctx, eui)
	switch {
	case err == nil:
		return s.ID, false, nil
	case !errors.Is(err, ErrSensorNotFound):
		return 0, false, fmt.Errorf("resolving sensor %s: %w", eui, err)
	}

	placeholder := &Sensor{
		DevEUI: &eui,
		Name:   PlaceholderName(eui),
		Mode:   ModeAuto,
	}
	err = r.repo.Create(ctx, placeholder)
	switch {
	case err == nil:
		r.logger.Info("sensor auto-registered", "dev_eui", eui, "id_sensor", placeholder.ID)
		return placeholder.ID, true, nil
	case errors.Is(err, ErrSensorExists):
		// Lost the race to a concurrent first sighting.
		s, err := r.repo.GetByEUI(ctx, eui)
		if err != nil {
			return 0, false, fmt.Errorf("re-reading sensor %s after conflict: %w", eui, err)
		}
		r.logger.Debug("sensor registered concurrently", "dev_eui", eui, "id_sensor", s.ID)
		return s.ID, false, nil
	default:
		return 0, false, fmt.Errorf("registering sensor %s: %w", eui, err)
	}
}

// Create registers a sensor supplied by an operator. The EUI is normalised;
// an EUI that reduces to nothing is stored as NULL. A missing name falls back
// to the placeholder name when an EUI is present, and a missing mode to auto.
func (r *Registry) Create(ctx context.Context, s *Sensor) error {
	if s.DevEUI != nil {
		eui := NormalizeEUI(*s.DevEUI)
		if eui == "" {
			s.DevEUI = nil
		} else {
			s.DevEUI = &eui
		}
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" && s.DevEUI != nil {
		s.Name = PlaceholderName(*s.DevEUI)
	}
	if s.Mode == "" {
		s.Mode = ModeAuto
	}
	if err := ValidateSensor(s); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, s); err != nil {
		return err
	}
	r.logger.Info("sensor created", "id_sensor", s.ID, "dev_eui", s.EUI())
	return nil
}

// Get retrieves a sensor by internal id.
func (r *Registry) Get(ctx context.Context, id int64) (*Sensor, error) {
	return r.repo.GetByID(ctx, id)
}

// GetByEUI retrieves a sensor by EUI in any notation.
func (r *Registry) GetByEUI(ctx context.Context, eui string) (*Sensor, error) {
	eui = NormalizeEUI(eui)
	if eui == "" {
		return nil, ErrInvalidEUI
	}
	return r.repo.GetByEUI(ctx, eui)
}

// List retrieves all sensors.
func (r *Registry) List(ctx context.Context) ([]Sensor, error) {
	return r.repo.List(ctx)
}

// Counts summarises the registry without loading every row.
func (r *Registry) Counts(ctx context.Context) (Counts, error) {
	return r.repo.Counts(ctx)
}

// UpdateMetadata validates and applies an operator update.
// It returns the number of rows the field update matched.
func (r *Registry) UpdateMetadata(ctx context.Context, req UpdateRequest) (int64, error) {
	if !req.Selector.Valid() {
		return 0, ErrNoSelector
	}
	if err := ValidatePatch(req.Patch); err != nil {
		return 0, err
	}

	affected, err := r.repo.UpdateMetadata(ctx, req)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			r.logger.Warn("sensor update rejected: identity already attached elsewhere",
				"selector", req.Selector.String(), "link_eui", NormalizeEUI(req.LinkEUI))
		}
		return 0, err
	}

	r.logger.Info("sensor metadata updated", "selector", req.Selector.String(), "affected", affected)
	return affected, nil
}

// LinkNetworkServer records the application and device ids the network
// server uses for the sensor, enabling downlinks to it.
func (r *Registry) LinkNetworkServer(ctx context.Context, id int64, appID, deviceID string) error {
	appID, deviceID = strings.TrimSpace(appID), strings.TrimSpace(deviceID)
	if appID == "" || deviceID == "" {
		return ErrInvalidAddressing
	}
	if err := r.repo.SetAddressing(ctx, id, appID, deviceID); err != nil {
		return err
	}
	r.logger.Info("sensor linked to network server", "id_sensor", id, "ttn_app_id", appID, "ttn_device_id", deviceID)
	return nil
}
