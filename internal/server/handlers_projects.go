package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

// validateProjectName checks that a project name is safe for storage.
func validateProjectName(name string) string {
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

// handleProjects handles /api/projects — list and create.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.app.Storage.Projects().List(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to list projects")
			WriteError(w, http.StatusInternalServerError, "Failed to list projects")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})

	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Type        string `json:"type"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if msg := validateProjectName(req.Name); msg != "" {
			WriteError(w, http.StatusBadRequest, msg)
			return
		}
		if req.Type == "" {
			req.Type = models.ProjectTypeOther
		}
		if err := models.ValidateProjectType(req.Type); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		project := &models.Project{
			ID:          models.GenerateProjectID(req.Name, time.Now()),
			Name:        req.Name,
			Description: req.Description,
			Type:        req.Type,
			Active:      true,
		}
		if err := s.app.Storage.Projects().Save(r.Context(), project); err != nil {
			s.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create project")
			WriteError(w, http.StatusInternalServerError, "Failed to create project")
			return
		}
		WriteJSON(w, http.StatusCreated, project)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeProjects dispatches GET/PUT/DELETE for /api/projects/{id}.
func (s *Server) routeProjects(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/projects/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "project id is required in path")
		return
	}
	ctx := r.Context()
	store := s.app.Storage.Projects()

	switch r.Method {
	case http.MethodGet:
		project, err := store.Get(ctx, id)
		if err != nil {
			s.writeStoreError(w, err, "Failed to get project")
			return
		}
		WriteJSON(w, http.StatusOK, project)

	case http.MethodPut:
		project, err := store.Get(ctx, id)
		if err != nil {
			s.writeStoreError(w, err, "Failed to get project")
			return
		}

		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			Type        *string `json:"type"`
			Active      *bool   `json:"active"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Name != nil {
			if msg := validateProjectName(*req.Name); msg != "" {
				WriteError(w, http.StatusBadRequest, msg)
				return
			}
			project.Name = *req.Name
		}
		if req.Description != nil {
			project.Description = *req.Description
		}
		if req.Type != nil {
			if err := models.ValidateProjectType(*req.Type); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			project.Type = *req.Type
		}
		if req.Active != nil {
			project.Active = *req.Active
		}

		if err := store.Save(ctx, project); err != nil {
			s.logger.Error().Err(err).Str("project_id", id).Msg("Failed to update project")
			WriteError(w, http.StatusInternalServerError, "Failed to update project")
			return
		}
		WriteJSON(w, http.StatusOK, project)

	case http.MethodDelete:
		counts, err := s.app.Storage.DeleteProjectCascade(ctx, id)
		if err != nil {
			s.writeStoreError(w, err, "Failed to delete project")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"deleted": id,
			"purged":  counts,
		})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// writeStoreError maps storage errors to HTTP: not-found becomes 404,
// anything else a logged 500 with a generic message.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.logger.Error().Err(err).Msg(message)
	WriteError(w, http.StatusInternalServerError, message)
}
