package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

// Engine is the part of detection.Engine the executor drives.
type Engine interface {
	Run(ctx context.Context, applicationID uint, actor string) (*detection.Report, error)
	DetectAllDuplicates(ctx context.Context, applicationID uint, actor string) (*detection.Report, error)
	Retrain(ctx context.Context, actor string) (*similarity.Model, error)
}

// DetectionExecutor runs detection and retrain jobs against an Engine.
type DetectionExecutor struct {
	Engine Engine
}

// NewDetectionExecutor creates a DetectionExecutor.
func NewDetectionExecutor(engine Engine) *DetectionExecutor {
	return &DetectionExecutor{Engine: engine}
}

// Execute dispatches on the job kind. Missing applications, a missing model
// store and unknown kinds fail without retry.
func (e *DetectionExecutor) Execute(ctx context.Context, job *Job) (Result, error) {
	switch job.Kind {
	case KindDetect, KindDuplicates:
		if job.ApplicationID == nil {
			return Result{}, Permanent(fmt.Errorf("%s job %s has no application", job.Kind, job.ID))
		}
		run := e.Engine.Run
		if job.Kind == KindDuplicates {
			run = e.Engine.DetectAllDuplicates
		}
		report, err := run(ctx, *job.ApplicationID, job.RequestedBy)
		if errors.Is(err, detection.ErrApplicationNotFound) {
			return Result{}, Permanent(err)
		}
		if err != nil {
			return Result{}, err
		}
		return Result{
			Created:  len(report.Created),
			Existing: report.Existing,
			Duration: report.Duration,
			Message: fmt.Sprintf("%d new, %d existing, %d unresolved; status %s",
				len(report.Created), report.Existing, report.Unresolved, report.Status),
		}, nil

	case KindRetrain:
		model, err := e.Engine.Retrain(ctx, job.RequestedBy)
		if errors.Is(err, detection.ErrNoModelStore) {
			return Result{}, Permanent(err)
		}
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message: fmt.Sprintf("model version %d fitted on %d documents", model.Version, model.DocCount),
		}, nil
	}
	return Result{}, Permanent(fmt.Errorf("unknown job kind %q", job.Kind))
}
