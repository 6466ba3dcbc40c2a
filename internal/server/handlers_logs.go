package server

import (
	"net/http"
	"strconv"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

func logLimit(r *http.Request) int {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return limit
}

// handleProjectLogs handles GET /api/logs/{projectId} — newest first.
func (s *Server) handleProjectLogs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	projectID := PathParam(r, "/api/logs/", "")
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, "project id is required in path")
		return
	}
	ctx := r.Context()

	if _, err := s.app.Storage.Projects().Get(ctx, projectID); err != nil {
		s.writeStoreError(w, err, "Failed to get project")
		return
	}

	entries, err := s.app.Storage.Logs().List(ctx, projectID, logLimit(r))
	if err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to list logs")
		WriteError(w, http.StatusInternalServerError, "Failed to list logs")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}

// handleSecurityLogs handles GET /api/logs/security — blocked scanner probes.
func (s *Server) handleSecurityLogs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	entries, err := s.app.Storage.Logs().ListSecurity(r.Context(), logLimit(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list security logs")
		WriteError(w, http.StatusInternalServerError, "Failed to list security logs")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}
