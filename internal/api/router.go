package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/system", s.handleSystem)
	r.Handle("/metrics", promhttp.Handler())

	// Network-server uplinks.
	r.Post("/webhook", s.handleWebhook)

	r.Get("/mediciones", s.handleLatestMeasurement)

	r.Route("/sensores", func(r chi.Router) {
		r.Get("/", s.handleListSensors)
		r.Post("/", s.handleCreateSensor)
		r.Put("/actualizar", s.handleUpdateSensor)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSensor)
			r.Patch("/", s.handlePatchSensor)
			r.Put("/ttn", s.handleLinkSensor)
		})
	})

	r.Post("/downlink", s.handleDownlink)

	r.Get("/audit", s.handleListAudit)

	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth runs one round trip through the store pool.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"version": s.version,
	})
}
