package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/ith-monitor-core/internal/audit"
)

// record appends an audit entry. Failures are logged, never surfaced.
func (s *Server) record(ctx context.Context, action string, sensorID int64, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: audit.EntitySensor,
		Source:     audit.SourceAPI,
		RequestID:  requestID(ctx),
		Details:    details,
	}
	if sensorID > 0 {
		entry.EntityID = strconv.FormatInt(sensorID, 10)
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

// handleListAudit returns recorded operator actions, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, audit.ListResult{Logs: []audit.AuditLog{}})
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, name+" must be an integer")
			return
		}
		*dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
