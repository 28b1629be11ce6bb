package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/ha"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// ErrNotFound is returned when the conflict does not exist.
var ErrNotFound = errors.New("conflict not found")

// Result describes a completed resolution.
type Result struct {
	Conflict          registry.Conflict          `json:"conflict"`
	PriorStatus       registry.ConflictStatus    `json:"priorStatus"`
	ApplicationStatus registry.ApplicationStatus `json:"applicationStatus"`
	ConflictScore     float64                    `json:"conflictScore"`
	DuplicateScore    float64                    `json:"duplicateScore"`
	Unresolved        int64                      `json:"unresolved"`
}

// Service resolves conflicts.
type Service struct {
	store    *registry.Store
	machine  *Machine
	locker   ha.Locker
	recorder audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service. locker serializes resolution with detection
// runs of the same application; recorder and logger may be nil.
func NewService(store *registry.Store, locker ha.Locker, recorder audit.Recorder, logger *slog.Logger) *Service {
	if locker == nil {
		locker = ha.NewLocker(nil, nil)
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		machine:  NewMachine(),
		locker:   locker,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve marks the conflict resolved and recomputes the owning
// application's scores and status. Resolving an already resolved conflict
// re-stamps it.
func (s *Service) Resolve(ctx context.Context, id uint, resolvedBy, notes string) (*Result, error) {
	c, err := s.store.GetConflict(ctx, id)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var res *Result
	err = s.locker.WithLock(ctx, ha.ApplicationKey(c.ApplicationID), func(ctx context.Context) error {
		res, err = s.resolveLocked(ctx, id, resolvedBy, notes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		Actor:     resolvedBy,
		Action:    audit.ActionConflictResolved,
		Table:     "conflicts",
		RecordID:  strconv.FormatUint(uint64(id), 10),
		OldValues: audit.JSONMap{"status": string(res.PriorStatus)},
		NewValues: audit.JSONMap{
			"status":             string(registry.ConflictResolved),
			"resolved_by":        resolvedBy,
			"resolution_notes":   notes,
			"application_status": string(res.ApplicationStatus),
		},
		Metadata: audit.JSONMap{"application_id": res.Conflict.ApplicationID},
	})
	s.logger.Info("conflict resolved",
		"conflictID", id, "applicationID", res.Conflict.ApplicationID,
		"priorStatus", res.PriorStatus, "unresolved", res.Unresolved)
	return res, nil
}

func (s *Service) resolveLocked(ctx context.Context, id uint, resolvedBy, notes string) (*Result, error) {
	var res *Result
	err := s.store.WithTx(ctx, func(tx *registry.Store) error {
		c, err := tx.GetConflictForUpdate(ctx, id)
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		prior := c.Status
		if err := s.machine.Validate(prior, registry.ConflictResolved); err != nil {
			return err
		}

		at := s.now()
		if err := tx.MarkConflictResolved(ctx, id, resolvedBy, notes, at); err != nil {
			return err
		}
		c.Status = registry.ConflictResolved
		c.ResolvedAt = &at
		c.ResolvedBy = resolvedBy
		c.ResolutionNotes = notes
		c.DedupKey = nil

		app, err := tx.GetApplication(ctx, c.ApplicationID)
		if err != nil {
			return err
		}
		stats, err := tx.UnresolvedStats(ctx, c.ApplicationID)
		if err != nil {
			return err
		}
		status := registry.BookkeepingStatus(app.Status, stats.Unresolved)
		err = tx.ApplyOutcome(ctx, c.ApplicationID, registry.DetectionOutcome{
			ConflictScore:  stats.MaxConfidence,
			DuplicateScore: stats.MaxDuplicateScore,
			Status:         status,
		})
		if err != nil {
			return err
		}

		res = &Result{
			Conflict:          *c,
			PriorStatus:       prior,
			ApplicationStatus: status,
			ConflictScore:     stats.MaxConfidence,
			DuplicateScore:    stats.MaxDuplicateScore,
			Unresolved:        stats.Unresolved,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve conflict %d: %w", id, err)
	}
	return res, nil
}
