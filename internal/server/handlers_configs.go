package server

import (
	"net/http"
	"strings"

	"github.com/keyrelay/keyrelay/internal/models"
)

// validateDomain checks that a config domain is a bare lowercase hostname.
func validateDomain(domain string) string {
	if domain == "" {
		return "domain is required in path"
	}
	if strings.ContainsAny(domain, "/:?# ") {
		return "domain must be a bare hostname"
	}
	return ""
}

// routeAPIConfigs dispatches /api/api-configs/{projectId}[/{domain}].
//
// Configs are validated at this write boundary so the injection path can
// trust what it loads. Domains are normalized to lowercase, matching how
// target hostnames are resolved.
func (s *Server) routeAPIConfigs(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/api-configs/")
	projectID, domain, _ := strings.Cut(rest, "/")
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, "project id is required in path")
		return
	}
	domain = strings.ToLower(domain)
	ctx := r.Context()

	if _, err := s.app.Storage.Projects().Get(ctx, projectID); err != nil {
		s.writeStoreError(w, err, "Failed to get project")
		return
	}

	switch {
	case r.Method == http.MethodGet && domain == "":
		configs, err := s.app.Storage.Configs().List(ctx, projectID)
		if err != nil {
			s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to list auth configs")
			WriteError(w, http.StatusInternalServerError, "Failed to list auth configs")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})

	case r.Method == http.MethodGet:
		cfg, err := s.app.Storage.Configs().Get(ctx, projectID, domain)
		if err != nil {
			s.writeStoreError(w, err, "Failed to get auth config")
			return
		}
		WriteJSON(w, http.StatusOK, cfg)

	case r.Method == http.MethodPost:
		if msg := validateDomain(domain); msg != "" {
			WriteError(w, http.StatusBadRequest, msg)
			return
		}
		var cfg models.APIAuthConfig
		if !DecodeJSON(w, r, &cfg) {
			return
		}
		if err := cfg.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := s.app.Storage.Configs().Set(ctx, projectID, domain, &cfg); err != nil {
			s.logger.Error().Err(err).Str("project_id", projectID).Str("domain", domain).Msg("Failed to save auth config")
			WriteError(w, http.StatusInternalServerError, "Failed to save auth config")
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]string{"domain": domain})

	case r.Method == http.MethodDelete && domain != "":
		if err := s.app.Storage.Configs().Delete(ctx, projectID, domain); err != nil {
			s.writeStoreError(w, err, "Failed to delete auth config")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": domain})

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
