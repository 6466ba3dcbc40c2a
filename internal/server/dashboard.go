package server

import (
	"embed"
	"net/http"
)

//go:embed assets/login.html assets/dashboard.html
var dashboardAssets embed.FS

func (s *Server) serveAsset(w http.ResponseWriter, name string) {
	data, err := dashboardAssets.ReadFile("assets/" + name)
	if err != nil {
		s.logger.Error().Err(err).Str("asset", name).Msg("Missing embedded asset")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// handleLoginPage serves the dashboard login page.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	s.serveAsset(w, "login.html")
}

// handleDashboard serves the dashboard at the root path only; anything else
// under "/" is a 404, not a catch-all.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	s.serveAsset(w, "dashboard.html")
}
