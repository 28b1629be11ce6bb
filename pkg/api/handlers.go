package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/ha"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/identifiers"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/jobs"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/resolution"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// detectHandler handles POST /applications/{applicationId}/detect
// Query params: mode (full or duplicates), sync (run inline when true)
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationId")
	if !ok {
		return
	}

	kind := jobs.KindDetect
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", detection.ModeFull:
	case detection.ModeDuplicates:
		kind = jobs.KindDuplicates
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
		return
	}
	actor := authz.ActorFromContext(r.Context())

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync || s.jobStore == nil {
		run := s.engine.Run
		if kind == jobs.KindDuplicates {
			run = s.engine.DetectAllDuplicates
		}
		report, err := run(r.Context(), id, actor)
		if err != nil {
			writeDetectionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if _, err := s.store.GetApplication(r.Context(), id); err != nil {
		writeStoreError(w, err, "application", id)
		return
	}
	s.enqueue(w, r, &jobs.Job{Kind: kind, ApplicationID: &id, RequestedBy: actor})
}

func writeDetectionError(w http.ResponseWriter, err error) {
	var failed *detection.DetectionFailed
	switch {
	case errors.Is(err, detection.ErrApplicationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &failed):
		status := http.StatusInternalServerError
		if errors.Is(err, ha.ErrLockTimeout) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"error":         failed.Error(),
			"detector":      failed.Detector,
			"applicationId": failed.ApplicationID,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// enqueueResponse is returned for accepted background work. Deduplicated
// is true when a live job for the same work absorbed the request.
type enqueueResponse struct {
	Job          jobs.JobResponse `json:"job"`
	Deduplicated bool             `json:"deduplicated"`
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, job *jobs.Job) {
	var appID uint
	if job.ApplicationID != nil {
		appID = *job.ApplicationID
	}
	key := jobs.IdempotencyKeyFor(job.Kind, appID)
	job.IdempotencyKey = &key

	stored, created, err := s.jobStore.Enqueue(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue job: %v", err))
		return
	}
	s.logger.Info("job enqueued", "jobID", stored.ID, "kind", stored.Kind, "created", created)
	writeJSON(w, http.StatusAccepted, enqueueResponse{Job: jobs.JobToResponse(stored), Deduplicated: !created})
}

// listConflictsHandler handles GET /applications/{applicationId}/conflicts
// Query params: status, type
func (s *Server) listConflictsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationId")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := registry.ConflictFilter{
		ApplicationID: id,
		Status:        registry.ConflictStatus(q.Get("status")),
		Type:          registry.ConflictType(q.Get("type")),
	}
	switch filter.Status {
	case "", registry.ConflictUnresolved, registry.ConflictResolved:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", filter.Status))
		return
	}

	if _, err := s.store.GetApplication(r.Context(), id); err != nil {
		writeStoreError(w, err, "application", id)
		return
	}
	conflicts, err := s.store.ListConflicts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list conflicts: %v", err))
		return
	}
	if conflicts == nil {
		conflicts = []registry.Conflict{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conflicts": conflicts,
		"totalSize": len(conflicts),
	})
}

// getConflictHandler handles GET /conflicts/{conflictId}
func (s *Server) getConflictHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "conflictId")
	if !ok {
		return
	}
	c, err := s.store.GetConflict(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "conflict", id)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

// resolveHandler handles POST /conflicts/{conflictId}/resolve
func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "conflictId")
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	res, err := s.resolver.Resolve(r.Context(), id, authz.ActorFromContext(r.Context()), req.Notes)
	var terr *resolution.TransitionError
	switch {
	case errors.Is(err, resolution.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("conflict %d not found", id))
	case errors.As(err, &terr):
		writeJSON(w, http.StatusConflict, terr)
	case errors.Is(err, ha.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to resolve conflict: %v", err))
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type identityCheckRequest struct {
	NRC       string `json:"nrc"`
	TPIN      string `json:"tpin"`
	ExcludeID uint   `json:"excludeId"`
}

type identityMatch struct {
	ID              uint                       `json:"id"`
	ReferenceNumber string                     `json:"referenceNumber"`
	ApplicantName   string                     `json:"applicantName"`
	NRC             string                     `json:"nrc"`
	TPIN            string                     `json:"tpin,omitempty"`
	Status          registry.ApplicationStatus `json:"status"`
	SubmittedAt     time.Time                  `json:"submittedAt"`
}

// identityCheckHandler handles POST /identity-check. It warns about
// applications already filed under the same NRC or TPIN and stores nothing.
func (s *Server) identityCheckHandler(w http.ResponseWriter, r *http.Request) {
	var req identityCheckRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if identifiers.Normalize(identifiers.KindNRC, req.NRC) == "" &&
		identifiers.Normalize(identifiers.KindTPIN, req.TPIN) == "" {
		writeError(w, http.StatusBadRequest, "nrc or tpin is required")
		return
	}

	apps, err := s.engine.Identity().Check(r.Context(), req.NRC, req.TPIN, req.ExcludeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to check identity: %v", err))
		return
	}
	matches := make([]identityMatch, len(apps))
	for i, a := range apps {
		matches[i] = identityMatch{
			ID:              a.ID,
			ReferenceNumber: a.ReferenceNumber,
			ApplicantName:   a.ApplicantName,
			NRC:             a.NRC,
			TPIN:            a.TPIN,
			Status:          a.Status,
			SubmittedAt:     a.SubmittedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"duplicate": len(matches) > 0,
		"matches":   matches,
	})
}

// validateHandler handles POST /validate
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	var fields identifiers.ApplicationFields
	if !decodeBody(w, r, &fields, false) {
		return
	}
	err := identifiers.ValidateApplication(fields)
	var verrs identifiers.ValidationErrors
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"valid": true})
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"valid": false, "errors": verrs})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// retrainHandler handles POST /similarity/retrain
// Query params: sync (run inline when true)
func (s *Server) retrainHandler(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		writeError(w, http.StatusServiceUnavailable, detection.ErrNoModelStore.Error())
		return
	}
	actor := authz.ActorFromContext(r.Context())

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync || s.jobStore == nil {
		model, err := s.engine.Retrain(r.Context(), actor)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, modelToResponse(model.Version, model.DocCount, len(model.Vocabulary), model.FittedAt))
		return
	}
	s.enqueue(w, r, &jobs.Job{Kind: jobs.KindRetrain, RequestedBy: actor})
}

type modelResponse struct {
	Version        int    `json:"version"`
	DocCount       int    `json:"docCount"`
	VocabularySize int    `json:"vocabularySize"`
	FittedAt       string `json:"fittedAt"`
}

func modelToResponse(version, docs, terms int, fittedAt time.Time) modelResponse {
	return modelResponse{
		Version:        version,
		DocCount:       docs,
		VocabularySize: terms,
		FittedAt:       fittedAt.UTC().Format(time.RFC3339),
	}
}

// modelHandler handles GET /similarity/model
func (s *Server) modelHandler(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		writeError(w, http.StatusServiceUnavailable, detection.ErrNoModelStore.Error())
		return
	}
	m, err := s.models.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load model: %v", err))
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "no similarity model has been fitted")
		return
	}
	writeJSON(w, http.StatusOK, modelToResponse(m.Version, m.DocCount, len(m.Vocabulary), m.FittedAt))
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uint, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", param))
		return 0, false
	}
	return uint(id), true
}

// decodeBody reads a JSON body into dst. An empty body is accepted when
// optional is true.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	return false
}

func writeStoreError(w http.ResponseWriter, err error, what string, id uint) {
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", what, id))
		return
	}
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load %s: %v", what, err))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
