package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/ith-monitor-core/internal/measurement"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

// handleLatestMeasurement returns the newest measurement, optionally narrowed
// by dev_eui and/or id_sensor.
func (s *Server) handleLatestMeasurement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f measurement.Filter
	if raw := q.Get("dev_eui"); raw != "" {
		f.DevEUI = sensor.NormalizeEUI(raw)
		if f.DevEUI == "" {
			writeBadRequest(w, "dev_eui has no hexadecimal digits")
			return
		}
	}
	if raw := q.Get("id_sensor"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "id_sensor must be a positive integer")
			return
		}
		f.SensorID = &id
	}

	m, err := s.measurements.Latest(r.Context(), f)
	if err != nil {
		if errors.Is(err, measurement.ErrNotFound) {
			writeNotFound(w, "no measurements")
			return
		}
		s.logger.Error("querying latest measurement failed", "error", err)
		writeInternalError(w, "failed to query measurements")
		return
	}

	writeJSON(w, http.StatusOK, m)
}
