package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records an API_REQUEST entry for every operator request that
// changes state, after the handler completes.
func Middleware(rec Recorder, cfg *AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || rec == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !isAuditedRequest(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			actor := "anonymous"
			var groups []string
			if id, ok := authz.IdentityFromContext(ctx); ok {
				actor = id.User
				groups = id.Groups
			}
			requestID := middleware.GetReqID(ctx)
			table, recordID := extractResource(r.URL.Path)

			rec.Record(ctx, Entry{
				Actor:     actor,
				Action:    ActionAPIRequest,
				Table:     table,
				RecordID:  recordID,
				Outcome:   outcome,
				RequestID: requestID,
				CreatedAt: startTime.UTC(),
				Metadata: JSONMap{
					"method":     r.Method,
					"path":       r.URL.Path,
					"verb":       extractActionVerb(r.Method, r.URL.Path),
					"statusCode": capture.statusCode,
					"duration":   time.Since(startTime).String(),
					"groups":     groups,
				},
			})
			logger.Debug("audited request", "actor", actor, "path", r.URL.Path, "outcome", outcome)
		})
	}
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusForbidden:
		return "denied"
	default:
		return "failure"
	}
}
