package server

import (
	"net/http"
	"time"
)

// registerRoutes sets up all routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)

	// Projects
	mux.HandleFunc("/api/projects/", s.routeProjects)
	mux.HandleFunc("/api/projects", s.handleProjects)

	// Secrets and auth configs
	mux.HandleFunc("/api/secrets/", s.routeSecrets)
	mux.HandleFunc("/api/api-configs/", s.routeAPIConfigs)

	// Logs
	mux.HandleFunc("/api/logs/security", s.handleSecurityLogs)
	mux.HandleFunc("/api/logs/", s.handleProjectLogs)

	// Credential-injecting proxy
	mux.HandleFunc("/proxy/", s.handleProxy)

	// Dashboard
	mux.HandleFunc("/login", s.handleLoginPage)
	mux.HandleFunc("/", s.handleDashboard)
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
