package detection

import (
	"context"
	"log/slog"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/extract"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// Detector produces findings for one application.
type Detector interface {
	// Name identifies the detector in logs, metrics and DetectionFailed.
	Name() string
	// Detect returns the findings for run.App. Unusable inputs are reported
	// through run.Skip; an error aborts the whole detection run.
	Detect(ctx context.Context, run *Run) ([]Finding, error)
}

// Run is the per-run state shared by the detectors of one detection run.
type Run struct {
	App *registry.Application

	extractor extract.Extractor
	texts     map[uint]string
	skipped   int
	onSkip    func(detector string)
	logger    *slog.Logger
}

func newRun(app *registry.Application, extractor extract.Extractor, logger *slog.Logger, onSkip func(string)) *Run {
	return &Run{
		App:       app,
		extractor: extractor,
		texts:     make(map[uint]string),
		onSkip:    onSkip,
		logger:    logger,
	}
}

// NewRun creates a Run for calling a Detector outside the Engine.
func NewRun(app *registry.Application, extractor extract.Extractor) *Run {
	return newRun(app, extractor, slog.Default(), nil)
}

// Text returns the extracted text of doc. Each document is extracted at most
// once per run.
func (r *Run) Text(ctx context.Context, doc registry.Document) string {
	if t, ok := r.texts[doc.ID]; ok {
		return t
	}
	var t string
	if r.extractor != nil && doc.FilePath != "" {
		t = r.extractor.ExtractText(ctx, doc.FilePath, doc.MimeType)
	}
	r.texts[doc.ID] = t
	return t
}

// Skip records an input the detector could not use.
func (r *Run) Skip(detector, reason string, args ...any) {
	r.skipped++
	if r.onSkip != nil {
		r.onSkip(detector)
	}
	r.logger.Warn("skipping input", append([]any{"detector", detector, "applicationID", r.App.ID, "reason", reason}, args...)...)
}

// Skipped returns the number of inputs skipped so far.
func (r *Run) Skipped() int { return r.skipped }
