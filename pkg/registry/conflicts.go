package registry

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertConflict stores c unless an unresolved record with the same dedup
// key already exists. It reports whether a row was created.
func (s *Store) InsertConflict(ctx context.Context, c *Conflict) (bool, error) {
	if c.Status == "" {
		c.Status = ConflictUnresolved
	}
	if c.DedupKey == nil && c.Status == ConflictUnresolved {
		key := DedupKeyFor(c.ApplicationID, c.ConflictType, c.CounterpartKind, c.CounterpartID)
		c.DedupKey = &key
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return false, fmt.Errorf("insert conflict: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ConflictFilter narrows ListConflicts. Zero fields are ignored.
type ConflictFilter struct {
	ApplicationID uint
	Status        ConflictStatus
	Type          ConflictType
	Limit         int
}

// ListConflicts returns conflicts newest first.
func (s *Store) ListConflicts(ctx context.Context, f ConflictFilter) ([]Conflict, error) {
	q := s.db.WithContext(ctx).Model(&Conflict{})
	if f.ApplicationID != 0 {
		q = q.Where("application_id = ?", f.ApplicationID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("conflict_type = ?", f.Type)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []Conflict
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return out, nil
}

// GetConflict returns a conflict by id.
func (s *Store) GetConflict(ctx context.Context, id uint) (*Conflict, error) {
	var c Conflict
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "conflict", id)
	}
	return &c, nil
}

// GetConflictForUpdate loads a conflict with a row lock where the dialect
// supports it. Use inside WithTx.
func (s *Store) GetConflictForUpdate(ctx context.Context, id uint) (*Conflict, error) {
	q := s.db.WithContext(ctx)
	if s.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c Conflict
	if err := q.First(&c, id).Error; err != nil {
		return nil, notFound(err, "conflict", id)
	}
	return &c, nil
}

// MarkConflictResolved stamps a conflict as resolved and releases its dedup
// key so the same finding may be raised again later.
func (s *Store) MarkConflictResolved(ctx context.Context, id uint, by, notes string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&Conflict{}).Where("id = ?", id).Updates(map[string]any{
		"status":           ConflictResolved,
		"resolved_at":      at,
		"resolved_by":      by,
		"resolution_notes": notes,
		"dedup_key":        gorm.Expr("NULL"),
	})
	if res.Error != nil {
		return fmt.Errorf("resolve conflict %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("conflict %d: %w", id, ErrNotFound)
	}
	return nil
}

// ConflictStats summarizes the unresolved conflicts of one application.
type ConflictStats struct {
	Unresolved        int64
	MaxConfidence     float64
	MaxDuplicateScore float64
}

// UnresolvedStats computes the open-conflict count and best scores.
func (s *Store) UnresolvedStats(ctx context.Context, applicationID uint) (ConflictStats, error) {
	var rows []struct {
		ConflictType ConflictType
		Count        int64
		MaxScore     float64
	}
	err := s.db.WithContext(ctx).Model(&Conflict{}).
		Select("conflict_type, COUNT(*) AS count, MAX(confidence_score) AS max_score").
		Where("application_id = ? AND status = ?", applicationID, ConflictUnresolved).
		Group("conflict_type").
		Scan(&rows).Error
	if err != nil {
		return ConflictStats{}, fmt.Errorf("summarize conflicts: %w", err)
	}

	var st ConflictStats
	for _, r := range rows {
		st.Unresolved += r.Count
		if r.MaxScore > st.MaxConfidence {
			st.MaxConfidence = r.MaxScore
		}
		if r.ConflictType.IsDuplicate() && r.MaxScore > st.MaxDuplicateScore {
			st.MaxDuplicateScore = r.MaxScore
		}
	}
	return st, nil
}

// DetectionOutcome is the aggregate written back to an application after a
// detection run or a resolution.
type DetectionOutcome struct {
	ConflictScore  float64
	DuplicateScore float64
	// MarkProcessed sets ai_processed. It is never cleared.
	MarkProcessed bool
	Status        ApplicationStatus
}

// ApplyOutcome writes the aggregate scores and status of an application.
func (s *Store) ApplyOutcome(ctx context.Context, applicationID uint, o DetectionOutcome) error {
	updates := map[string]any{
		"ai_conflict_score":  o.ConflictScore,
		"ai_duplicate_score": o.DuplicateScore,
		"updated_at":         time.Now().UTC(),
	}
	if o.MarkProcessed {
		updates["ai_processed"] = true
	}
	if o.Status != "" {
		updates["status"] = o.Status
	}
	res := s.db.WithContext(ctx).Model(&Application{}).Where("id = ?", applicationID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update application %d: %w", applicationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("application %d: %w", applicationID, ErrNotFound)
	}
	return nil
}

// BookkeepingStatus derives the status an application should hold given its
// current status and number of unresolved conflicts. Approved and rejected
// applications keep their status.
func BookkeepingStatus(current ApplicationStatus, unresolved int64) ApplicationStatus {
	switch current {
	case StatusApproved, StatusRejected:
		return current
	}
	if unresolved > 0 {
		return StatusConflict
	}
	if current == StatusConflict {
		return StatusPending
	}
	return current
}
