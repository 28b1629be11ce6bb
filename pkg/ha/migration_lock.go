package ha

import (
	"context"

	"gorm.io/gorm"
)

const migrationLockKey = "landreg-migration"

// MigrationLocker serializes AutoMigrate across replicas.
type MigrationLocker interface {
	// WithLock executes fn while holding the migration lock.
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker creates a MigrationLocker backed by NewLocker. When the
// lock is disabled or no database is configured fn runs unguarded.
func NewMigrationLocker(db *gorm.DB, cfg *HAConfig) MigrationLocker {
	if cfg == nil {
		cfg = DefaultHAConfig()
	}
	if db == nil || !cfg.MigrationLockEnabled {
		return noopMigrationLock{}
	}
	return &migrationLock{locker: NewLocker(db, cfg)}
}

type noopMigrationLock struct{}

func (noopMigrationLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

type migrationLock struct {
	locker Locker
}

func (m *migrationLock) WithLock(ctx context.Context, fn func() error) error {
	return m.locker.WithLock(ctx, migrationLockKey, func(context.Context) error { return fn() })
}
