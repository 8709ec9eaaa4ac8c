package measurement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/database"
)

// Repository defines measurement persistence. Measurements are append-only.
type Repository interface {
	// Insert stores a reading, optionally associated with a sensor, and
	// returns the stored row.
	Insert(ctx context.Context, sensorID *int64, r Reading) (*Measurement, error)

	// Latest returns the most recent measurement matching f.
	// Returns ErrNotFound when nothing matches.
	Latest(ctx context.Context, f Filter) (*Measurement, error)
}

// SQLRepository implements Repository on the relational store.
type SQLRepository struct {
	db    *database.DB
	clock clockwork.Clock
}

// NewSQLRepository creates a store-backed repository using the wall clock.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db, clock: clockwork.NewRealClock()}
}

// WithClock replaces the clock used for fecha.
func (r *SQLRepository) WithClock(c clockwork.Clock) *SQLRepository {
	r.clock = c
	return r
}

// Insert stores a reading stamped with the current time.
func (r *SQLRepository) Insert(ctx context.Context, sensorID *int64, rd Reading) (*Measurement, error) {
	m := &Measurement{
		SensorID:  sensorID,
		Reading:   rd,
		Timestamp: r.clock.Now().UTC(),
	}

	var sid sql.NullInt64
	if sensorID != nil {
		sid = sql.NullInt64{Int64: *sensorID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO mediciones (id_sensor, temperatura, humedad, ith, fecha)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		sid, rd.Temperature, rd.Humidity, rd.ITH, m.Timestamp,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting measurement: %w", err)
	}
	return m, nil
}

// Latest returns the newest matching measurement by insertion order.
func (r *SQLRepository) Latest(ctx context.Context, f Filter) (*Measurement, error) {
	var where []string
	var args []any
	if f.DevEUI != "" {
		where = append(where, "s.dev_eui = ?")
		args = append(args, f.DevEUI)
	}
	if f.SensorID != nil {
		where = append(where, "m.id_sensor = ?")
		args = append(args, *f.SensorID)
	}

	query := `
		SELECT m.id, m.id_sensor, s.dev_eui, m.temperatura, m.humedad, m.ith, m.fecha
		FROM mediciones m
		LEFT JOIN sensores s ON s.id = m.id_sensor`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY m.id DESC\n\t\tLIMIT 1"

	var m Measurement
	var sid sql.NullInt64
	var eui sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&m.ID, &sid, &eui, &m.Temperature, &m.Humidity, &m.ITH, &m.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying latest measurement: %w", err)
	}
	if sid.Valid {
		m.SensorID = &sid.Int64
	}
	if eui.Valid {
		m.DevEUI = &eui.String
	}
	return &m, nil
}
