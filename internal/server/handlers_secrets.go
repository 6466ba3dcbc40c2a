package server

import (
	"net/http"
	"strings"
	"time"
)

// validateSecretName rejects names that would break storage keys or headers.
func validateSecretName(name string) string {
	if name == "" {
		return "name is required"
	}
	if len(name) > 128 {
		return "name must be 128 characters or fewer"
	}
	for _, c := range name {
		if c < 0x20 || c == 0x7f {
			return "name contains invalid control characters"
		}
	}
	return ""
}

// routeSecrets dispatches /api/secrets/{projectId}[/{name}].
//
// Secret values are write-only through this API: listing returns names and
// timestamps, never plaintext.
func (s *Server) routeSecrets(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/secrets/")
	projectID, name, _ := strings.Cut(rest, "/")
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, "project id is required in path")
		return
	}
	ctx := r.Context()

	// All secret operations require an existing project.
	if _, err := s.app.Storage.Projects().Get(ctx, projectID); err != nil {
		s.writeStoreError(w, err, "Failed to get project")
		return
	}

	switch {
	case r.Method == http.MethodGet && name == "":
		metas, err := s.app.Storage.Secrets().List(ctx, projectID)
		if err != nil {
			s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to list secrets")
			WriteError(w, http.StatusInternalServerError, "Failed to list secrets")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"secrets": metas})

	case r.Method == http.MethodPost && name == "":
		var req struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if msg := validateSecretName(req.Name); msg != "" {
			WriteError(w, http.StatusBadRequest, msg)
			return
		}
		if req.Value == "" {
			WriteError(w, http.StatusBadRequest, "value is required")
			return
		}

		if err := s.app.Storage.Secrets().Set(ctx, projectID, req.Name, req.Value); err != nil {
			s.logger.Error().Err(err).Str("project_id", projectID).Str("secret", req.Name).Msg("Failed to save secret")
			WriteError(w, http.StatusInternalServerError, "Failed to save secret")
			return
		}
		// A secret write counts as project activity.
		if err := s.app.Storage.Projects().Touch(ctx, projectID, time.Now()); err != nil {
			s.logger.Warn().Err(err).Str("project_id", projectID).Msg("Failed to touch project")
		}
		WriteJSON(w, http.StatusCreated, map[string]string{"name": req.Name})

	case r.Method == http.MethodDelete && name != "":
		if err := s.app.Storage.Secrets().Delete(ctx, projectID, name); err != nil {
			s.writeStoreError(w, err, "Failed to delete secret")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": name})

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
