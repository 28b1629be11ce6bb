package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// GetJobHandler handles GET /api/v1/jobs/{jobId}
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		job, err := store.Get(r.Context(), jobID)
		if errors.Is(err, ErrJobNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// ListJobsHandler handles GET /api/v1/jobs
// Query params: kind, applicationId, state, requestedBy, pageSize, pageToken
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := JobListFilter{
			Kind:        q.Get("kind"),
			State:       q.Get("state"),
			RequestedBy: q.Get("requestedBy"),
		}
		if v := q.Get("applicationId"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "applicationId must be a positive integer")
				return
			}
			filter.ApplicationID = uint(id)
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := store.List(r.Context(), filter, pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		jobs := make([]JobResponse, len(records))
		for i := range records {
			jobs[i] = JobToResponse(&records[i])
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          jobs,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// CancelJobHandler handles POST /api/v1/jobs/{jobId}/cancel
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		err := store.Cancel(r.Context(), jobID)
		switch {
		case errors.Is(err, ErrJobNotFound):
			writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not found", jobID))
			return
		case errors.Is(err, ErrNotCancelable):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to cancel job: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "canceled",
			"jobId":  jobID,
		})
	}
}

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID            string `json:"id" yaml:"id"`
	Kind          string `json:"kind" yaml:"kind"`
	ApplicationID *uint  `json:"applicationId,omitempty" yaml:"applicationId,omitempty"`
	RequestedBy   string `json:"requestedBy" yaml:"requestedBy"`
	RequestedAt   string `json:"requestedAt" yaml:"requestedAt"`
	State         string `json:"state" yaml:"state"`
	Message       string `json:"message,omitempty" yaml:"message,omitempty"`
	StartedAt     string `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt    string `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	AttemptCount  int    `json:"attemptCount" yaml:"attemptCount"`
	LastError     string `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	Created       int    `json:"created,omitempty" yaml:"created,omitempty"`
	Existing      int    `json:"existing,omitempty" yaml:"existing,omitempty"`
	DurationMs    int64  `json:"durationMs,omitempty" yaml:"durationMs,omitempty"`
}

// JobToResponse converts a stored job to its API form.
func JobToResponse(job *Job) JobResponse {
	resp := JobResponse{
		ID:            job.ID,
		Kind:          string(job.Kind),
		ApplicationID: job.ApplicationID,
		RequestedBy:   job.RequestedBy,
		RequestedAt:   job.RequestedAt.Format(time.RFC3339),
		State:         string(job.State),
		Message:       job.Message,
		AttemptCount:  job.AttemptCount,
		LastError:     job.LastError,
		Created:       job.Created,
		Existing:      job.Existing,
		DurationMs:    job.DurationMs,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
