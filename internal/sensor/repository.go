package sensor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
)

// Repository defines the interface for sensor persistence operations.
type Repository interface {
	// GetByID retrieves a sensor by internal id.
	// Returns ErrSensorNotFound if the sensor does not exist.
	GetByID(ctx context.Context, id int64) (*Sensor, error)

	// GetByEUI retrieves a sensor by canonical EUI.
	// Returns ErrSensorNotFound if no sensor carries the EUI.
	GetByEUI(ctx context.Context, eui string) (*Sensor, error)

	// List retrieves all sensors ordered by id.
	List(ctx context.Context) ([]Sensor, error)

	// Counts aggregates registry totals in the store.
	Counts(ctx context.Context) (Counts, error)

	// Create inserts a sensor and fills in its generated id and timestamps.
	// Returns ErrSensorExists if the EUI is already registered.
	Create(ctx context.Context, s *Sensor) error

	// UpdateMetadata applies a patch (and optional EUI back-link) atomically.
	// Returns the number of sensor rows the field update matched.
	UpdateMetadata(ctx context.Context, req UpdateRequest) (int64, error)

	// SetAddressing sets the network-server application and device ids.
	// Returns ErrSensorNotFound if the sensor does not exist.
	SetAddressing(ctx context.Context, id int64, appID, deviceID string) error
}

const sensorColumns = `
	id, dev_eui, nombre, id_granja, modelo, area, zona, sala, modo,
	umbral_ith, ttn_app_id, ttn_device_id, creado_en, actualizado_en`

// SQLRepository implements Repository on the relational store.
// Queries are dialect-neutral and rebound by database.DB.
type SQLRepository struct {
	db    *database.DB
	clock clockwork.Clock
}

// NewSQLRepository creates a store-backed repository using the wall clock.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db, clock: clockwork.NewRealClock()}
}

// WithClock replaces the clock used for creado_en/actualizado_en.
func (r *SQLRepository) WithClock(c clockwork.Clock) *SQLRepository {
	r.clock = c
	return r
}

// GetByID retrieves a sensor by internal id.
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*Sensor, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sensorColumns+" FROM sensores WHERE id = ?", id)
	s, err := scanSensorRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("querying sensor by id: %w", err)
	}
	return s, nil
}

// GetByEUI retrieves a sensor by canonical EUI.
func (r *SQLRepository) GetByEUI(ctx context.Context, eui string) (*Sensor, error) {
	if eui == "" {
		return nil, ErrSensorNotFound
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+sensorColumns+" FROM sensores WHERE dev_eui = ?", eui)
	s, err := scanSensorRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("querying sensor by eui: %w", err)
	}
	return s, nil
}

// List retrieves all sensors ordered by id.
func (r *SQLRepository) List(ctx context.Context) ([]Sensor, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+sensorColumns+" FROM sensores ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	sensors := []Sensor{}
	for rows.Next() {
		s, err := scanSensorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sensor: %w", err)
		}
		sensors = append(sensors, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensors: %w", err)
	}
	return sensors, nil
}

// Counts aggregates registry totals with a single query.
func (r *SQLRepository) Counts(ctx context.Context) (Counts, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN ttn_app_id IS NOT NULL AND ttn_app_id <> ''
				AND ttn_device_id IS NOT NULL AND ttn_device_id <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN dev_eui IS NULL OR dev_eui = '' THEN 1 ELSE 0 END), 0)
		FROM sensores`

	var c Counts
	if err := r.db.QueryRowContext(ctx, query).Scan(&c.Total, &c.Linked, &c.WithoutEUI); err != nil {
		return Counts{}, fmt.Errorf("counting sensors: %w", err)
	}
	return c, nil
}

// Create inserts a sensor. Empty EUIs are stored as NULL.
func (r *SQLRepository) Create(ctx context.Context, s *Sensor) error {
	now := r.clock.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
		INSERT INTO sensores (
			dev_eui, nombre, id_granja, modelo, area, zona, sala, modo,
			umbral_ith, ttn_app_id, ttn_device_id, creado_en, actualizado_en
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		nullableString(s.DevEUI),
		s.Name,
		nullableInt64(s.FarmID),
		nullableString(s.Model),
		nullableString(s.Area),
		nullableString(s.Zone),
		nullableString(s.Room),
		string(s.Mode),
		nullableFloat64(s.Threshold),
		nullableString(s.TTNAppID),
		nullableString(s.TTNDeviceID),
		now,
		now,
	).Scan(&s.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSensorExists
		}
		return fmt.Errorf("inserting sensor: %w", err)
	}
	return nil
}

// UpdateMetadata runs the field update and the EUI back-link in one
// transaction. Any unique violation rolls both back and surfaces as
// ErrDuplicateIdentity.
func (r *SQLRepository) UpdateMetadata(ctx context.Context, req UpdateRequest) (int64, error) {
	if !req.Selector.Valid() {
		return 0, ErrNoSelector
	}

	now := r.clock.Now().UTC()
	p := req.Patch

	var mode sql.NullString
	if p.Mode != nil && *p.Mode != "" {
		mode = sql.NullString{String: string(*p.Mode), Valid: true}
	}

	update := `
		UPDATE sensores SET
			modo = COALESCE(?, modo),
			modelo = COALESCE(?, modelo),
			area = COALESCE(?, area),
			zona = COALESCE(?, zona),
			sala = COALESCE(?, sala),
			umbral_ith = ?,
			actualizado_en = ?
		WHERE `
	args := []any{
		mode,
		nullableString(p.Model),
		nullableString(p.Area),
		nullableString(p.Zone),
		nullableString(p.Room),
		nullableFloat64(p.Threshold),
		now,
	}

	id, byID := req.Selector.ID()
	if byID {
		update += "id = ?"
		args = append(args, id)
	} else {
		eui, _ := req.Selector.EUI()
		update += "dev_eui = ?"
		args = append(args, eui)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, r.db.Rebind(update), args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrDuplicateIdentity
		}
		return 0, fmt.Errorf("updating sensor metadata: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrSensorNotFound
	}

	if link := NormalizeEUI(req.LinkEUI); byID && link != "" {
		// Only fills an empty slot; an attached EUI is never replaced.
		_, err := tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE sensores SET dev_eui = ?, actualizado_en = ?
			WHERE id = ? AND (dev_eui IS NULL OR dev_eui = '')`),
			link, now, id,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return 0, ErrDuplicateIdentity
			}
			return 0, fmt.Errorf("linking sensor eui: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing sensor update: %w", err)
	}
	return affected, nil
}

// SetAddressing overwrites the network-server addressing pair.
func (r *SQLRepository) SetAddressing(ctx context.Context, id int64, appID, deviceID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sensores SET ttn_app_id = ?, ttn_device_id = ?, actualizado_en = ?
		WHERE id = ?`,
		appID, deviceID, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating sensor addressing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSensorRow(scanner rowScanner) (*Sensor, error) {
	var s Sensor
	var devEUI, model, area, zone, room, appID, deviceID sql.NullString
	var farmID sql.NullInt64
	var threshold sql.NullFloat64
	var mode string

	err := scanner.Scan(
		&s.ID,
		&devEUI,
		&s.Name,
		&farmID,
		&model,
		&area,
		&zone,
		&room,
		&mode,
		&threshold,
		&appID,
		&deviceID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Mode = Mode(mode)
	s.DevEUI = stringPtr(devEUI)
	s.Model = stringPtr(model)
	s.Area = stringPtr(area)
	s.Zone = stringPtr(zone)
	s.Room = stringPtr(room)
	s.TTNAppID = stringPtr(appID)
	s.TTNDeviceID = stringPtr(deviceID)
	if farmID.Valid {
		s.FarmID = &farmID.Int64
	}
	if threshold.Valid {
		s.Threshold = &threshold.Float64
	}
	return &s, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return &ns.String
}

// nullableString maps nil and "" to NULL.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullableFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
