package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Job lifecycle (single job slot)
	mux.HandleFunc("/api/job", s.handleJobRoute)
	mux.HandleFunc("/api/job/cancel", s.app.JobHandler.CancelJobHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Everything else is a JSON 404
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoute dispatches /api/job by method: POST starts, GET reads
// status, DELETE clears a finished record
func (s *Server) handleJobRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.JobHandler.StartJobHandler(w, r)
	case http.MethodGet:
		s.app.JobHandler.StatusJobHandler(w, r)
	case http.MethodDelete:
		s.app.JobHandler.ClearJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
