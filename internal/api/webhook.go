package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/ith-monitor-core/internal/ingest"
)

// handleWebhook accepts a network-server uplink.
//
// Permanent rejections (bad payload, no identity, bad reading) answer 4xx so
// the network server does not retry them. Storage failures answer 500, which
// the network server retries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "payload too large")
			return
		}
		writeBadRequest(w, "failed to read body")
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrMalformedPayload), errors.Is(err, ingest.ErrMissingIdentifier):
			writeBadRequest(w, err.Error())
		case errors.Is(err, ingest.ErrInvalidReading):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("webhook ingestion failed", "error", err,
				"request_id", requestID(r.Context()))
			writeInternalError(w, "failed to store measurement")
		}
		return
	}

	s.logger.Debug("uplink stored",
		"id", res.Measurement.ID,
		"dev_eui", res.DevEUI,
		"sensor_created", res.SensorCreated,
	)
	writeText(w, http.StatusOK, "OK")
}
