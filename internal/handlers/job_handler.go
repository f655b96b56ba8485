package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/jobs/orchestrator"
	"github.com/ternarybob/scribo/internal/models"
)

// JobHandler exposes the job lifecycle over HTTP. Requests may omit the
// model, note base URL, project and API key; those are filled from config
// defaults before validation.
type JobHandler struct {
	orchestrator JobOrchestrator
	config       *common.Config
	logger       arbor.ILogger
}

func NewJobHandler(orch JobOrchestrator, config *common.Config, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator: orch,
		config:       config,
		logger:       logger,
	}
}

// StartJobHandler handles POST /api/job
func (h *JobHandler) StartJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	h.applyDefaults(&req)

	job, err := h.orchestrator.Start(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrInvalidRequest):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orchestrator.ErrAlreadyRunning), errors.Is(err, interfaces.ErrDelegateBusy):
			WriteError(w, http.StatusConflict, "A job is already running")
		default:
			h.logger.Error().Err(err).Msg("Failed to start job")
			WriteError(w, http.StatusInternalServerError, "Failed to start job")
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// CancelJobHandler handles POST /api/job/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	// the reason is optional and the body may be absent entirely
	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	err := h.orchestrator.Cancel(r.Context(), body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNoActiveJob):
			WriteError(w, http.StatusNotFound, "No active job to cancel")
		case errors.Is(err, orchestrator.ErrCancelAlreadyRequested):
			WriteError(w, http.StatusConflict, "Cancellation already requested")
		default:
			h.logger.Error().Err(err).Msg("Failed to cancel job")
			WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
		}
		return
	}

	WriteSuccess(w, "Cancellation requested")
}

// StatusJobHandler handles GET /api/job
func (h *JobHandler) StatusJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.orchestrator.Status(r.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoActiveJob) {
			WriteJSON(w, http.StatusNotFound, map[string]string{
				"status": "idle",
			})
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read job status")
		WriteError(w, http.StatusInternalServerError, "Failed to read job status")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ClearJobHandler handles DELETE /api/job
func (h *JobHandler) ClearJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	err := h.orchestrator.Clear(r.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrJobStillRunning) {
			WriteError(w, http.StatusConflict, "Cannot clear a running job")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to clear job")
		WriteError(w, http.StatusInternalServerError, "Failed to clear job")
		return
	}

	WriteSuccess(w, "Job record cleared")
}

// applyDefaults fills omitted request fields from configuration
func (h *JobHandler) applyDefaults(req *models.JobRequest) {
	if h.config == nil {
		return
	}
	if req.Model == "" {
		req.Model = h.config.Summarizer.Model
	}
	if req.APIKey == "" {
		req.APIKey = h.config.Summarizer.APIKey
	}
	if req.BaseURL == "" {
		req.BaseURL = h.config.Notes.BaseURL
	}
	if req.Project == "" {
		req.Project = h.config.Notes.Project
	}
}
