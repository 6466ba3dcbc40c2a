package server

import (
	"net/http"
)

// handleProxy handles ANY /proxy/{projectId}?target_url=... by delegating
// to the dispatcher. The proxy surface is authenticated by project, not by
// the admin credential, so it sits outside adminAuthMiddleware.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	projectID := PathParam(r, "/proxy/", "")
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, "project id is required in path")
		return
	}
	s.app.Dispatcher.Dispatch(w, r, projectID)
}
