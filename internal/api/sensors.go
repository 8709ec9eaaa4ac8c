package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ith-monitor-core/internal/audit"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// sensorIDParam accepts id_sensor as a JSON number or a numeric string.
type sensorIDParam struct {
	value int64
	set   bool
}

func (p *sensorIDParam) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.New("id_sensor must be an integer")
	}
	p.value, p.set = id, true
	return nil
}

// createSensorRequest is the body of POST /sensores.
type createSensorRequest struct {
	DevEUI    *string  `json:"dev_eui"`
	Name      string   `json:"nombre"`
	FarmID    *int64   `json:"id_granja"`
	Model     *string  `json:"modelo"`
	Area      *string  `json:"area"`
	Zone      *string  `json:"zona"`
	Room      *string  `json:"sala"`
	Mode      string   `json:"modo"`
	Threshold *float64 `json:"umbral_ith"`
}

// metadataFields is the mutable field set shared by both update routes.
type metadataFields struct {
	Mode      *string  `json:"modo"`
	Model     *string  `json:"modelo"`
	Area      *string  `json:"area"`
	Zone      *string  `json:"zona"`
	Room      *string  `json:"sala"`
	Threshold *float64 `json:"umbral_ith"`
}

func (f metadataFields) patch() sensor.MetadataPatch {
	p := sensor.MetadataPatch{
		Model:     f.Model,
		Area:      f.Area,
		Zone:      f.Zone,
		Room:      f.Room,
		Threshold: f.Threshold,
	}
	if f.Mode != nil {
		m := sensor.Mode(strings.TrimSpace(*f.Mode))
		p.Mode = &m
	}
	return p
}

// updateSensorRequest is the body of PUT /sensores/actualizar.
type updateSensorRequest struct {
	SensorID sensorIDParam `json:"id_sensor"`
	DevEUI   string        `json:"dev_eui"`
	metadataFields
}

// linkSensorRequest is the body of PUT /sensores/{id}/ttn.
type linkSensorRequest struct {
	ApplicationID string `json:"ttn_app_id"`
	DeviceID      string `json:"ttn_device_id"`
}

// handleListSensors returns every registered sensor.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.sensors.List(r.Context())
	if err != nil {
		s.logger.Error("listing sensors failed", "error", err)
		writeInternalError(w, "failed to list sensors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sensores": sensors,
		"count":    len(sensors),
	})
}

// handleGetSensor returns a single sensor by id.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := sensorIDFromPath(w, r)
	if !ok {
		return
	}

	sen, err := s.sensors.Get(r.Context(), id)
	if err != nil {
		s.writeSensorError(w, err, "failed to get sensor")
		return
	}
	writeJSON(w, http.StatusOK, sen)
}

// handleCreateSensor registers a sensor supplied by an operator.
func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sen := &sensor.Sensor{
		DevEUI:    req.DevEUI,
		Name:      req.Name,
		FarmID:    req.FarmID,
		Model:     req.Model,
		Area:      req.Area,
		Zone:      req.Zone,
		Room:      req.Room,
		Mode:      sensor.Mode(req.Mode),
		Threshold: req.Threshold,
	}
	if err := s.sensors.Create(r.Context(), sen); err != nil {
		s.writeSensorError(w, err, "failed to create sensor")
		return
	}
	s.record(r.Context(), audit.ActionSensorCreate, sen.ID, map[string]any{"dev_eui": sen.EUI()})
	writeJSON(w, http.StatusCreated, sen)
}

// handleUpdateSensor applies an operator update addressed by id_sensor or
// dev_eui. When both are given, id_sensor selects and dev_eui is back-linked
// onto a sensor that has none.
func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	var req updateSensorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	update := sensor.UpdateRequest{Patch: req.patch()}
	switch {
	case req.SensorID.set:
		update.Selector = sensor.ByID(req.SensorID.value)
		update.LinkEUI = req.DevEUI
	case strings.TrimSpace(req.DevEUI) != "":
		update.Selector = sensor.ByEUI(req.DevEUI)
	default:
		writeBadRequest(w, "id_sensor or dev_eui is required")
		return
	}

	s.applyUpdate(w, r, update)
}

// handlePatchSensor is the path-addressed form of handleUpdateSensor.
func (s *Server) handlePatchSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := sensorIDFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		DevEUI string `json:"dev_eui"`
		metadataFields
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.applyUpdate(w, r, sensor.UpdateRequest{
		Selector: sensor.ByID(id),
		LinkEUI:  req.DevEUI,
		Patch:    req.patch(),
	})
}

func (s *Server) applyUpdate(w http.ResponseWriter, r *http.Request, update sensor.UpdateRequest) {
	affected, err := s.sensors.UpdateMetadata(r.Context(), update)
	if err != nil {
		s.writeSensorError(w, err, "failed to update sensor")
		return
	}

	details := map[string]any{"selector": update.Selector.String(), "affected_rows": affected}
	if update.LinkEUI != "" {
		details["link_eui"] = sensor.NormalizeEUI(update.LinkEUI)
	}
	id, _ := update.Selector.ID()
	s.record(r.Context(), audit.ActionSensorUpdate, id, details)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"affected_rows": affected,
	})
}

// handleLinkSensor sets the network-server addressing used for downlinks.
func (s *Server) handleLinkSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := sensorIDFromPath(w, r)
	if !ok {
		return
	}

	var req linkSensorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.sensors.LinkNetworkServer(r.Context(), id, req.ApplicationID, req.DeviceID); err != nil {
		s.writeSensorError(w, err, "failed to link sensor")
		return
	}
	s.record(r.Context(), audit.ActionSensorLink, id, map[string]any{
		"ttn_app_id":    req.ApplicationID,
		"ttn_device_id": req.DeviceID,
	})

	sen, err := s.sensors.Get(r.Context(), id)
	if err != nil {
		s.writeSensorError(w, err, "failed to get sensor")
		return
	}
	writeJSON(w, http.StatusOK, sen)
}

// writeSensorError maps registry errors to responses.
func (s *Server) writeSensorError(w http.ResponseWriter, err error, internalMsg string) {
	switch {
	case errors.Is(err, sensor.ErrSensorNotFound):
		writeNotFound(w, "sensor not found")
	case errors.Is(err, sensor.ErrSensorExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "a sensor with this dev_eui already exists")
	case errors.Is(err, sensor.ErrDuplicateIdentity):
		writeError(w, http.StatusConflict, ErrCodeDuplicateEUI, "dev_eui is already attached to another sensor")
	case isSensorValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error(internalMsg, "error", err)
		writeInternalError(w, internalMsg)
	}
}

func isSensorValidationError(err error) bool {
	for _, target := range []error{
		sensor.ErrNoSelector,
		sensor.ErrInvalidEUI,
		sensor.ErrInvalidMode,
		sensor.ErrInvalidName,
		sensor.ErrInvalidLabel,
		sensor.ErrInvalidThreshold,
		sensor.ErrInvalidAddressing,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func sensorIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "sensor id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into dst, writing 413 or 400 on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "payload too large")
			return false
		}
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
