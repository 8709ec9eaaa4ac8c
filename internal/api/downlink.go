package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/ith-monitor-core/internal/audit"
	"github.com/nerrad567/ith-monitor-core/internal/downlink"
	"github.com/nerrad567/ith-monitor-core/internal/sensor"
)

type downlinkRequest struct {
	DevEUI  string `json:"dev_eui"`
	Command string `json:"cmd"`
}

// handleDownlink relays an operator command to a sensor.
func (s *Server) handleDownlink(w http.ResponseWriter, r *http.Request) {
	var req downlinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DevEUI) == "" || req.Command == "" {
		writeBadRequest(w, "dev_eui and cmd are required")
		return
	}

	receipt, err := s.relay.Send(r.Context(), req.DevEUI, req.Command)
	if err != nil {
		var upstream *downlink.UpstreamError
		switch {
		case errors.Is(err, sensor.ErrInvalidEUI), errors.Is(err, downlink.ErrEmptyCommand):
			writeBadRequest(w, err.Error())
		case errors.Is(err, sensor.ErrSensorNotFound):
			writeNotFound(w, "sensor not found")
		case errors.Is(err, downlink.ErrNotLinked):
			writeError(w, http.StatusConflict, ErrCodeNotLinked, "sensor has no network-server addressing")
		case errors.Is(err, downlink.ErrMissingCredential):
			s.logger.Error("downlink credential not configured")
			writeError(w, http.StatusInternalServerError, ErrCodeNoCredentials, "downlink credential not configured")
		case errors.As(err, &upstream):
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, upstream.Error())
		default:
			s.logger.Error("downlink relay failed", "dev_eui", req.DevEUI, "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, "network server unreachable")
		}
		return
	}

	s.record(r.Context(), audit.ActionDownlinkSend, receipt.SensorID, map[string]any{
		"dev_eui":        receipt.DevEUI,
		"cmd":            req.Command,
		"correlation_id": receipt.CorrelationID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"dev_eui":        receipt.DevEUI,
		"ttn_app_id":     receipt.ApplicationID,
		"ttn_device_id":  receipt.DeviceID,
		"correlation_id": receipt.CorrelationID,
	})
}
