package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/extract"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/ha"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

// Run modes, used in metrics and audit entries.
const (
	ModeFull       = "full"
	ModeDuplicates = "duplicates"
)

// Options configures an Engine. Every field is optional.
type Options struct {
	Config    *Config
	Extractor extract.Extractor
	Models    similarity.ModelStore
	Locker    ha.Locker
	Recorder  audit.Recorder
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Engine runs detectors against an application and records the outcome.
type Engine struct {
	store     *registry.Store
	cfg       *Config
	extractor extract.Extractor
	models    similarity.ModelStore
	locker    ha.Locker
	recorder  audit.Recorder
	metrics   *Metrics
	logger    *slog.Logger

	full       []Detector
	duplicates []Detector
	identity   *IdentityDetector
}

// NewEngine creates an Engine over store.
func NewEngine(store *registry.Store, opts Options) *Engine {
	e := &Engine{
		store:     store,
		cfg:       opts.Config,
		extractor: opts.Extractor,
		models:    opts.Models,
		locker:    opts.Locker,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if e.cfg == nil {
		e.cfg = DefaultConfig()
	}
	if e.locker == nil {
		e.locker = ha.NewLocker(nil, nil)
	}
	if e.recorder == nil {
		e.recorder = audit.NopRecorder{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	e.identity = &IdentityDetector{Store: store}
	byName := map[string]Detector{
		DetectorSpatial:  &SpatialDetector{Store: store},
		DetectorDocument: &DocumentDetector{Store: store, Models: e.models, Timeout: e.cfg.SimilarityTimeout},
		DetectorIdentity: e.identity,
		DetectorHash:     &HashDetector{Store: store},
		DetectorContent:  &ContentDetector{Store: store, Timeout: e.cfg.SimilarityTimeout},
	}
	for _, name := range AllDetectors {
		if e.cfg.enabled(name) {
			e.full = append(e.full, byName[name])
		}
	}
	e.duplicates = []Detector{byName[DetectorHash], byName[DetectorContent], byName[DetectorIdentity]}
	return e
}

// Identity returns the identity detector for standalone checks.
func (e *Engine) Identity() *IdentityDetector { return e.identity }

// Locker returns the locker serializing detection per application.
func (e *Engine) Locker() ha.Locker { return e.locker }

// Report summarizes a successful detection run.
type Report struct {
	ApplicationID uint   `json:"applicationId"`
	Mode          string `json:"mode"`
	// Created holds the records this run inserted.
	Created []registry.Conflict `json:"created"`
	// Existing counts findings already recorded as unresolved.
	Existing int `json:"existing"`
	// Total is the number of findings produced.
	Total          int                        `json:"total"`
	Skipped        int                        `json:"skipped"`
	ConflictScore  float64                    `json:"conflictScore"`
	DuplicateScore float64                    `json:"duplicateScore"`
	Unresolved     int64                      `json:"unresolved"`
	Status         registry.ApplicationStatus `json:"status"`
	Duration       time.Duration              `json:"duration"`
}

// Run executes every enabled detector against the application.
func (e *Engine) Run(ctx context.Context, applicationID uint, actor string) (*Report, error) {
	return e.run(ctx, applicationID, actor, ModeFull, e.full)
}

// DetectAllDuplicates runs only the duplicate detectors: exact hash,
// content and identity.
func (e *Engine) DetectAllDuplicates(ctx context.Context, applicationID uint, actor string) (*Report, error) {
	return e.run(ctx, applicationID, actor, ModeDuplicates, e.duplicates)
}

func (e *Engine) run(ctx context.Context, applicationID uint, actor, mode string, detectors []Detector) (*Report, error) {
	start := time.Now()
	logger := e.logger.With("applicationID", applicationID, "mode", mode)

	var report *Report
	err := e.locker.WithLock(ctx, ha.ApplicationKey(applicationID), func(ctx context.Context) error {
		var err error
		report, err = e.runLocked(ctx, applicationID, mode, detectors, logger)
		return err
	})

	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			e.metrics.observeRun(mode, "not_found", elapsed.Seconds())
			return nil, err
		}
		var failed *DetectionFailed
		if !errors.As(err, &failed) {
			failed = &DetectionFailed{ApplicationID: applicationID, Detector: StageLock, Cause: err}
		}
		e.fail(ctx, failed, actor, mode, elapsed, logger)
		return nil, failed
	}

	report.Duration = elapsed
	e.metrics.observeRun(mode, "success", elapsed.Seconds())
	e.recordSuccess(ctx, report, actor)
	logger.Info("detection complete",
		"created", len(report.Created), "existing", report.Existing,
		"skipped", report.Skipped, "score", report.ConflictScore, "status", report.Status)
	return report, nil
}

func (e *Engine) runLocked(ctx context.Context, applicationID uint, mode string, detectors []Detector, logger *slog.Logger) (*Report, error) {
	failed := func(stage string, err error) error {
		return &DetectionFailed{ApplicationID: applicationID, Detector: stage, Cause: err}
	}

	app, err := e.store.GetApplication(ctx, applicationID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrApplicationNotFound, applicationID)
	}
	if err != nil {
		return nil, failed(StageLoad, err)
	}

	run := newRun(app, e.extractor, logger, e.metrics.skipped)
	var findings []Finding
	for _, d := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, failed(d.Name(), err)
		}
		fs, err := d.Detect(ctx, run)
		if err != nil {
			return nil, failed(d.Name(), err)
		}
		findings = append(findings, fs...)
	}

	if err := e.linkParcels(ctx, findings); err != nil {
		return nil, failed(StageLoad, err)
	}

	report := &Report{ApplicationID: applicationID, Mode: mode, Total: len(findings), Skipped: run.Skipped()}
	err = e.store.WithTx(ctx, func(tx *registry.Store) error {
		for _, f := range findings {
			c := f.conflict(applicationID)
			created, err := tx.InsertConflict(ctx, c)
			if err != nil {
				return err
			}
			if created {
				report.Created = append(report.Created, *c)
			} else {
				report.Existing++
			}
		}

		stats, err := tx.UnresolvedStats(ctx, applicationID)
		if err != nil {
			return err
		}
		status := registry.BookkeepingStatus(app.Status, stats.Unresolved)
		err = tx.ApplyOutcome(ctx, applicationID, registry.DetectionOutcome{
			ConflictScore:  stats.MaxConfidence,
			DuplicateScore: stats.MaxDuplicateScore,
			MarkProcessed:  true,
			Status:         status,
		})
		if err != nil {
			return err
		}
		report.ConflictScore = stats.MaxConfidence
		report.DuplicateScore = stats.MaxDuplicateScore
		report.Unresolved = stats.Unresolved
		report.Status = status
		return nil
	})
	if err != nil {
		return nil, failed(StagePersist, err)
	}

	for _, c := range report.Created {
		e.metrics.finding(string(c.ConflictType), "created")
	}
	for _, f := range findings {
		if !report.createdKey(f.DedupKey(applicationID)) {
			e.metrics.finding(string(f.Type), "existing")
		}
	}
	return report, nil
}

func (r *Report) createdKey(key string) bool {
	for _, c := range r.Created {
		if c.DedupKey != nil && *c.DedupKey == key {
			return true
		}
	}
	return false
}

// linkParcels fills ParcelID on application counterparts that created a
// registered parcel.
func (e *Engine) linkParcels(ctx context.Context, findings []Finding) error {
	var ids []uint
	for _, f := range findings {
		if f.CounterpartKind == registry.CounterpartApplication && f.ParcelID == nil {
			ids = append(ids, f.CounterpartID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	parcels, err := e.store.ParcelIDsByApplication(ctx, ids)
	if err != nil {
		return err
	}
	for i := range findings {
		f := &findings[i]
		if f.CounterpartKind != registry.CounterpartApplication || f.ParcelID != nil {
			continue
		}
		if pid, ok := parcels[f.CounterpartID]; ok {
			f.ParcelID = uintPtr(pid)
		}
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, failed *DetectionFailed, actor, mode string, elapsed time.Duration, logger *slog.Logger) {
	e.metrics.failure(failed.Detector)
	e.metrics.observeRun(mode, "failure", elapsed.Seconds())
	logger.Error("detection failed", "detector", failed.Detector, "error", failed.Cause)
	e.recorder.Record(context.WithoutCancel(ctx), audit.Entry{
		Actor:    actor,
		Action:   audit.ActionDetectionFailed,
		Table:    "applications",
		RecordID: strconv.FormatUint(uint64(failed.ApplicationID), 10),
		Outcome:  "failure",
		Metadata: audit.JSONMap{"mode": mode, "detector": failed.Detector, "error": failed.Cause.Error()},
	})
}

func (e *Engine) recordSuccess(ctx context.Context, r *Report, actor string) {
	action := audit.ActionConflictDetection
	if r.Mode == ModeDuplicates {
		action = audit.ActionDuplicateDetection
	}
	ids := make([]string, 0, len(r.Created))
	for _, c := range r.Created {
		ids = append(ids, strconv.FormatUint(uint64(c.ID), 10))
	}
	e.recorder.Record(ctx, audit.Entry{
		Actor:    actor,
		Action:   action,
		Table:    "applications",
		RecordID: strconv.FormatUint(uint64(r.ApplicationID), 10),
		NewValues: audit.JSONMap{
			"conflicts_created":  strings.Join(ids, ","),
			"ai_conflict_score":  r.ConflictScore,
			"ai_duplicate_score": r.DuplicateScore,
			"status":             string(r.Status),
		},
		Metadata: audit.JSONMap{"mode": r.Mode, "existing": r.Existing, "skipped": r.Skipped, "total": r.Total},
	})
}

// Retrain fits a new similarity model over the text of every document and
// saves it as the next version.
func (e *Engine) Retrain(ctx context.Context, actor string) (*similarity.Model, error) {
	if e.models == nil {
		return nil, ErrNoModelStore
	}
	docs, err := e.store.AllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrain similarity model: %w", err)
	}
	run := newRun(&registry.Application{}, e.extractor, e.logger, nil)
	corpus := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := run.Text(ctx, d); strings.TrimSpace(t) != "" {
			corpus = append(corpus, t)
		}
	}
	model, err := similarity.Retrain(ctx, e.models, corpus)
	if err != nil {
		return nil, fmt.Errorf("retrain similarity model: %w", err)
	}
	e.recorder.Record(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionModelRetrained,
		Table:    "similarity_models",
		RecordID: strconv.Itoa(model.Version),
		NewValues: audit.JSONMap{
			"version":    model.Version,
			"documents":  model.DocCount,
			"vocabulary": len(model.Vocabulary),
		},
	})
	e.logger.Info("similarity model retrained", "version", model.Version, "documents", model.DocCount)
	return model, nil
}
