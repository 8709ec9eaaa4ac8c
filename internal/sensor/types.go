package sensor

import (
	"strconv"
	"time"
)

// Mode is the sensor's operating mode.
type Mode string

// Operating modes.
const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Sensor is a registered device, matching the sensores table in
// migrations/{sqlite,postgres}/20260301_090000_initial_schema.up.sql.
type Sensor struct {
	ID        int64    `json:"id_sensor"`
	DevEUI    *string  `json:"dev_eui"`
	Name      string   `json:"nombre"`
	FarmID    *int64   `json:"id_granja"`
	Model     *string  `json:"modelo"`
	Area      *string  `json:"area"`
	Zone      *string  `json:"zona"`
	Room      *string  `json:"sala"`
	Mode      Mode     `json:"modo"`
	Threshold *float64 `json:"umbral_ith"`

	// Network-server addressing needed for downlinks.
	TTNAppID    *string `json:"ttn_app_id"`
	TTNDeviceID *string `json:"ttn_device_id"`

	CreatedAt time.Time `json:"creado_en"`
	UpdatedAt time.Time `json:"actualizado_en"`
}

// Linked reports whether the sensor carries complete downlink addressing.
func (s *Sensor) Linked() bool {
	return s.TTNAppID != nil && *s.TTNAppID != "" &&
		s.TTNDeviceID != nil && *s.TTNDeviceID != ""
}

// EUI returns the attached EUI or "".
func (s *Sensor) EUI() string {
	if s.DevEUI == nil {
		return ""
	}
	return *s.DevEUI
}

// Clone returns an independent copy; pointer fields are duplicated.
func (s *Sensor) Clone() *Sensor {
	if s == nil {
		return nil
	}
	cpy := *s
	cpy.DevEUI = cloneString(s.DevEUI)
	cpy.Model = cloneString(s.Model)
	cpy.Area = cloneString(s.Area)
	cpy.Zone = cloneString(s.Zone)
	cpy.Room = cloneString(s.Room)
	cpy.TTNAppID = cloneString(s.TTNAppID)
	cpy.TTNDeviceID = cloneString(s.TTNDeviceID)
	if s.FarmID != nil {
		v := *s.FarmID
		cpy.FarmID = &v
	}
	if s.Threshold != nil {
		v := *s.Threshold
		cpy.Threshold = &v
	}
	return &cpy
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type selectorKind uint8

const (
	selectNone selectorKind = iota
	selectID
	selectEUI
)

// Selector picks the sensor a metadata update applies to: either the
// internal id or the canonical EUI, never both. The zero value selects nothing.
type Selector struct {
	kind selectorKind
	id   int64
	eui  string
}

// ByID selects a sensor by internal id.
func ByID(id int64) Selector {
	return Selector{kind: selectID, id: id}
}

// ByEUI selects a sensor by EUI. The input is normalised.
func ByEUI(eui string) Selector {
	return Selector{kind: selectEUI, eui: NormalizeEUI(eui)}
}

// ID returns the selected id and true when selecting by id.
func (s Selector) ID() (int64, bool) {
	return s.id, s.kind == selectID
}

// EUI returns the selected EUI and true when selecting by EUI.
func (s Selector) EUI() (string, bool) {
	return s.eui, s.kind == selectEUI
}

// Valid reports whether the selector names a usable key.
func (s Selector) Valid() bool {
	switch s.kind {
	case selectID:
		return s.id > 0
	case selectEUI:
		return s.eui != ""
	default:
		return false
	}
}

func (s Selector) String() string {
	switch s.kind {
	case selectID:
		return "id=" + strconv.FormatInt(s.id, 10)
	case selectEUI:
		return "dev_eui=" + s.eui
	default:
		return "none"
	}
}

// MetadataPatch carries the editable sensor fields.
//
// Mode, Model, Area, Zone and Room merge: nil or "" keeps the stored value.
// Threshold replaces: it is written as given, and nil clears it.
type MetadataPatch struct {
	Mode      *Mode
	Model     *string
	Area      *string
	Zone      *string
	Room      *string
	Threshold *float64
}

// UpdateRequest is the input to an update-metadata operation.
type UpdateRequest struct {
	Selector Selector

	// LinkEUI is attached to the sensor when selecting by id and the sensor
	// has no EUI yet. Ignored when selecting by EUI.
	LinkEUI string

	Patch MetadataPatch
}

// Counts summarises the registry.
type Counts struct {
	Total      int `json:"total"`
	Linked     int `json:"linked"`
	WithoutEUI int `json:"without_eui"`
}
