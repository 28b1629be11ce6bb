package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ModelStore loads and saves fitted models. Save assigns the next version.
type ModelStore interface {
	Latest(ctx context.Context) (*Model, error)
	Save(ctx context.Context, m *Model) (*Model, error)
}

// ModelRecord is the GORM model for one stored model version.
type ModelRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Version   int       `gorm:"column:version;uniqueIndex:idx_similarity_model_version;not null"`
	DocCount  int       `gorm:"column:doc_count"`
	TermCount int       `gorm:"column:term_count"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	FittedAt  time.Time `gorm:"column:fitted_at"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (ModelRecord) TableName() string { return "similarity_models" }

// GormModelStore persists models in the database.
type GormModelStore struct {
	db *gorm.DB
}

// NewGormModelStore creates a new GormModelStore.
func NewGormModelStore(db *gorm.DB) *GormModelStore {
	return &GormModelStore{db: db}
}

// AutoMigrate creates or updates the similarity_models table.
func (s *GormModelStore) AutoMigrate() error {
	return s.db.AutoMigrate(&ModelRecord{})
}

// Latest returns the highest version, or (nil, nil) if none was saved.
func (s *GormModelStore) Latest(ctx context.Context) (*Model, error) {
	var rec ModelRecord
	err := s.db.WithContext(ctx).Order("version DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load similarity model: %w", err)
	}
	var m Model
	if err := json.Unmarshal([]byte(rec.Payload), &m); err != nil {
		return nil, fmt.Errorf("decode similarity model v%d: %w", rec.Version, err)
	}
	m.Version = rec.Version
	return &m, nil
}

// Save stores m as the next version and returns the stored copy.
func (s *GormModelStore) Save(ctx context.Context, m *Model) (*Model, error) {
	if m == nil {
		return nil, errors.New("save similarity model: nil model")
	}
	out := *m
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int
		if err := tx.Model(&ModelRecord{}).Select("COALESCE(MAX(version), 0)").Scan(&current).Error; err != nil {
			return err
		}
		out.Version = current + 1
		payload, err := json.Marshal(&out)
		if err != nil {
			return err
		}
		return tx.Create(&ModelRecord{
			Version:   out.Version,
			DocCount:  out.DocCount,
			TermCount: len(out.Vocabulary),
			Payload:   string(payload),
			FittedAt:  out.FittedAt,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save similarity model: %w", err)
	}
	return &out, nil
}

// MemoryModelStore keeps models in process memory.
type MemoryModelStore struct {
	mu     sync.RWMutex
	latest *Model
}

// NewMemoryModelStore creates an empty MemoryModelStore.
func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{}
}

func (s *MemoryModelStore) Latest(_ context.Context) (*Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, nil
}

func (s *MemoryModelStore) Save(_ context.Context, m *Model) (*Model, error) {
	if m == nil {
		return nil, errors.New("save similarity model: nil model")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *m
	out.Version = 1
	if s.latest != nil {
		out.Version = s.latest.Version + 1
	}
	s.latest = &out
	return &out, nil
}

// Retrain fits a model over corpus and saves it as a new version.
func Retrain(ctx context.Context, store ModelStore, corpus []string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return store.Save(ctx, Fit(corpus))
}
