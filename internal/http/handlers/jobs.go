package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"spinshot/internal/domain"
)

type jobView struct {
	ID             string    `json:"id"`
	ProductName    string    `json:"product_name"`
	Status         string    `json:"status"`
	HostedImageURL string    `json:"hosted_image_url,omitempty"`
	Description    string    `json:"description,omitempty"`
	VideoPrompt    string    `json:"video_prompt,omitempty"`
	HasVideo       bool      `json:"has_video"`
	VideoBytes     int       `json:"video_bytes,omitempty"`
	VideoMIME      string    `json:"video_mime,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newJobView(job *domain.Job) jobView {
	return jobView{
		ID:             job.ID,
		ProductName:    job.ProductName,
		Status:         string(job.Status),
		HostedImageURL: job.HostedImageURL,
		Description:    job.Description,
		VideoPrompt:    job.VideoPrompt,
		HasVideo:       len(job.VideoPayload) > 0,
		VideoBytes:     len(job.VideoPayload),
		VideoMIME:      job.VideoMIME,
		FailureReason:  job.FailureReason,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

// JobGet returns the current state of one job.
func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job id required")
		return
	}
	job, err := a.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

// JobList returns all tracked jobs, newest first.
func (a *App) JobList(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Store.List(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	items := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, newJobView(job))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobVideo streams the stored video payload of a completed job.
func (a *App) JobVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job id required")
		return
	}
	job, err := a.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.Status != domain.JobStatusCompleted || len(job.VideoPayload) == 0 {
		a.error(w, http.StatusConflict, "not_ready", "job has no video payload")
		return
	}
	w.Header().Set("X-Job-ID", job.ID)
	w.Header().Set("Content-Type", job.VideoMIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(job.VideoPayload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.VideoPayload)
}
