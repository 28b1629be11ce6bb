package ha

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Locker provides mutual exclusion by key across goroutines and, when backed
// by a database, across replicas.
type Locker interface {
	// WithLock runs fn while holding the lock for key and releases it when fn
	// returns. It waits at most the configured acquire timeout.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// ApplicationKey is the lock key serializing detection for one application.
func ApplicationKey(applicationID uint) string {
	return fmt.Sprintf("detect:%d", applicationID)
}

// remoteLock is a cross-process lock implementation.
type remoteLock interface {
	withLock(ctx context.Context, deadline time.Time, key string, fn func() error) error
}

// LockerOption configures a Locker.
type LockerOption func(*lockerOptions)

type lockerOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report lock release failures.
func WithLogger(logger *slog.Logger) LockerOption {
	return func(o *lockerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewLocker creates a Locker for the database dialect. PostgreSQL uses
// session advisory locks on a pinned connection; other databases use a lock
// table. A nil db yields an in-process locker only.
func NewLocker(db *gorm.DB, cfg *HAConfig, opts ...LockerOption) Locker {
	if cfg == nil {
		cfg = DefaultHAConfig()
	}
	o := lockerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	l := &keyedLocker{local: newLocalLocks(), cfg: cfg}
	if db == nil {
		return l
	}
	if db.Dialector.Name() == "postgres" {
		l.remote = &pgAdvisoryLock{db: db, retry: cfg.RetryInterval, logger: o.logger}
		return l
	}
	// Create the lock table immediately so that concurrent callers never
	// hit "no such table" errors on their first WithLock call.
	_ = db.AutoMigrate(&lockRecord{})
	l.remote = &tableLock{db: db, cfg: cfg, logger: o.logger}
	return l
}

type keyedLocker struct {
	local  *localLocks
	remote remoteLock
	cfg    *HAConfig
}

func (l *keyedLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	deadline := time.Now().Add(l.cfg.AcquireTimeout)
	actx, cancel := context.WithDeadline(ctx, deadline)
	release, err := l.local.acquire(actx, key)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		return err
	}
	defer release()

	if l.remote == nil {
		return fn(ctx)
	}
	return l.remote.withLock(ctx, deadline, key, func() error { return fn(ctx) })
}

// localLocks is a map of per-key channel mutexes. Entries are dropped once
// no goroutine holds or waits on them.
type localLocks struct {
	mu sync.Mutex
	m  map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func newLocalLocks() *localLocks {
	return &localLocks{m: make(map[string]*localEntry)}
}

func (l *localLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.unref(key, e)
		}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

func (l *localLocks) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, key)
	}
}

// advisoryKey maps a lock key onto the bigint space of pg advisory locks.
func advisoryKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

// pgAdvisoryLock holds a session-level advisory lock on a dedicated
// connection, since the lock belongs to the session that took it.
type pgAdvisoryLock struct {
	db     *gorm.DB
	retry  time.Duration
	logger *slog.Logger
}

func (l *pgAdvisoryLock) withLock(ctx context.Context, deadline time.Time, key string, fn func() error) error {
	lockID := advisoryKey(key)
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		for {
			var acquired bool
			if err := conn.Raw("SELECT pg_try_advisory_lock(?)", lockID).Scan(&acquired).Error; err != nil {
				return fmt.Errorf("acquire advisory lock %s: %w", key, err)
			}
			if acquired {
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.retry):
			}
		}

		// Always release the lock, even when ctx is already canceled.
		defer func() {
			if err := conn.WithContext(context.Background()).Exec("SELECT pg_advisory_unlock(?)", lockID).Error; err != nil {
				l.logger.Warn("failed to release advisory lock", "key", key, "error", err)
			}
		}()

		return fn()
	})
}

// lockRecord is one held table lock.
type lockRecord struct {
	Key      string    `gorm:"primaryKey;column:lock_key;size:128"`
	Token    string    `gorm:"column:token;size:36;not null"`
	LockedBy string    `gorm:"column:locked_by"`
	LockedAt time.Time `gorm:"column:locked_at;index"`
}

func (lockRecord) TableName() string { return "registry_locks" }

// tableLock uses INSERT-or-fail on a primary key for databases without
// advisory locks, with stale-row takeover for crash recovery.
type tableLock struct {
	db     *gorm.DB
	cfg    *HAConfig
	logger *slog.Logger
}

func (l *tableLock) withLock(ctx context.Context, deadline time.Time, key string, fn func() error) error {
	row := lockRecord{Key: key, Token: uuid.New().String(), LockedBy: l.cfg.Identity}

	for {
		l.db.WithContext(ctx).
			Where("lock_key = ? AND locked_at < ?", key, time.Now().Add(-l.cfg.StaleLockAge)).
			Delete(&lockRecord{})

		row.LockedAt = time.Now()
		err := l.db.WithContext(ctx).Create(&row).Error
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.RetryInterval):
		}
	}

	// A row left behind is taken over once it is older than StaleLockAge.
	defer func() {
		if err := l.db.Where("lock_key = ? AND token = ?", key, row.Token).Delete(&lockRecord{}).Error; err != nil {
			l.logger.Warn("failed to release table lock", "key", key, "error", err)
		}
	}()

	return fn()
}
