package api

import (
	"encoding/json"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storyreel/internal/db"
	"storyreel/internal/models"
	"storyreel/internal/queue"
	"storyreel/internal/storage"
)

// RenderDefaults fills settings the caller omits. Sourced from env config
// so deployments can pick their house defaults.
type RenderDefaults struct {
	Resolution string
	FPS        int
	Quality    string
}

type Handler struct {
	db       *db.DB
	nudger   *queue.Nudger
	storage  *storage.Storage
	defaults RenderDefaults
}

func NewHandler(database *db.DB, nudger *queue.Nudger, stor *storage.Storage, defaults RenderDefaults) *Handler {
	return &Handler{
		db:       database,
		nudger:   nudger,
		storage:  stor,
		defaults: defaults,
	}
}

// CreateRender handles POST /v1/renders
func (h *Handler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ProjectID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	settings := models.RenderSettings{}
	if req.Settings != nil {
		settings = *req.Settings
	}
	settings.ApplyDefaults(h.defaults.Resolution, h.defaults.FPS, h.defaults.Quality)
	if err := settings.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &models.VideoJob{
		ID:        uuid.New(),
		ProjectID: req.ProjectID,
		Status:    models.JobStatusPending,
		Progress:  0,
		Settings:  settings,
	}

	if err := h.db.CreateJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create render job")
		return
	}

	// Wake the scheduler. Best-effort: the periodic poll picks the job up
	// even if the nudge is lost.
	h.nudger.Nudge(r.Context())

	respondJSON(w, http.StatusCreated, models.CreateRenderResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetRender handles GET /v1/renders/{id}
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid render ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Render not found")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse(job))
}

// ListProjectRenders handles GET /v1/projects/{id}/renders
func (h *Handler) ListProjectRenders(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	jobs, err := h.db.ListProjectJobs(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list renders")
		return
	}

	responses := make([]models.JobStatusResponse, len(jobs))
	for i := range jobs {
		responses[i] = statusResponse(&jobs[i])
	}

	respondJSON(w, http.StatusOK, responses)
}

// ListRenders handles GET /v1/renders?status=<status>
// Query params:
//   - status: required; one of pending, processing, completed, failed
func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) {
	statusFilter := models.JobStatus(r.URL.Query().Get("status"))
	switch statusFilter {
	case models.JobStatusPending, models.JobStatusProcessing,
		models.JobStatusCompleted, models.JobStatusFailed:
	default:
		respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: pending, processing, completed, failed")
		return
	}

	jobs, err := h.db.ListJobsByStatus(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list renders")
		return
	}

	responses := make([]models.JobStatusResponse, len(jobs))
	for i := range jobs {
		responses[i] = statusResponse(&jobs[i])
	}

	respondJSON(w, http.StatusOK, responses)
}

// DeleteRender handles DELETE /v1/renders/{id}
func (h *Handler) DeleteRender(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid render ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Render not found")
		return
	}

	// A processing job is owned by the scheduler; deleting its row out from
	// under the pipeline would orphan the workspace and the status updates.
	if job.Status == models.JobStatusProcessing {
		respondError(w, http.StatusConflict, "Render is currently processing")
		return
	}

	if err := h.db.DeleteJob(r.Context(), jobID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete render")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRenderDownload handles GET /v1/renders/{id}/download
func (h *Handler) GetRenderDownload(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid render ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Render not found")
		return
	}

	if job.Status != models.JobStatusCompleted || job.VideoURL == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	storagePath := path.Join("renders", job.ProjectID.String(), job.ID.String()+".mp4")

	// Signed URL valid for 1 hour
	signedURL, err := h.storage.GetSignedURL(r.Context(), storagePath, 3600)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

func statusResponse(job *models.VideoJob) models.JobStatusResponse {
	return models.JobStatusResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		VideoURL: job.VideoURL,
		FileSize: job.FileSize,
		Error:    job.ErrorMessage,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
