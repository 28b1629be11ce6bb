package resolution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

func setup(t *testing.T) (*registry.Store, *audit.Store, *Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	// One connection keeps shared-cache sqlite from reporting table locks
	// when goroutines race.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := registry.NewStore(db)
	auditStore := audit.NewStore(db)
	require.NoError(t, store.AutoMigrate())
	require.NoError(t, auditStore.AutoMigrate())
	return store, auditStore, NewService(store, nil, audit.NewRecorder(auditStore, nil), nil)
}

func seed(t *testing.T, store *registry.Store, status registry.ApplicationStatus, scores ...float64) (*registry.Application, []registry.Conflict) {
	t.Helper()
	ctx := context.Background()
	app := &registry.Application{ReferenceNumber: "LR-" + uuid.NewString()[:8], ApplicantName: "Jane Banda", Status: status}
	require.NoError(t, store.CreateApplication(ctx, app))

	var out []registry.Conflict
	for i, s := range scores {
		c := &registry.Conflict{
			ApplicationID:   app.ID,
			CounterpartKind: registry.CounterpartParcel,
			CounterpartID:   uint(i + 1),
			ConflictType:    registry.ConflictLocationMatch,
			Title:           "Location Match",
			ConfidenceScore: s,
			Severity:        registry.SeverityMedium,
		}
		created, err := store.InsertConflict(ctx, c)
		require.NoError(t, err)
		require.True(t, created)
		out = append(out, *c)
	}
	stats, err := store.UnresolvedStats(ctx, app.ID)
	require.NoError(t, err)
	require.NoError(t, store.ApplyOutcome(ctx, app.ID, registry.DetectionOutcome{
		ConflictScore: stats.MaxConfidence,
		MarkProcessed: true,
		Status:        registry.BookkeepingStatus(status, stats.Unresolved),
	}))
	return app, out
}

func TestResolveLastConflictReturnsToPending(t *testing.T) {
	store, auditStore, svc := setup(t)
	ctx := context.Background()
	app, conflicts := seed(t, store, registry.StatusPending, 0.4)

	res, err := svc.Resolve(ctx, conflicts[0].ID, "officer1", "boundary confirmed by survey")
	require.NoError(t, err)
	assert.Equal(t, registry.ConflictUnresolved, res.PriorStatus)
	assert.Equal(t, registry.StatusPending, res.ApplicationStatus)
	assert.Zero(t, res.Unresolved)
	assert.Zero(t, res.ConflictScore)

	got, err := store.GetConflict(ctx, conflicts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, registry.ConflictResolved, got.Status)
	assert.Equal(t, "officer1", got.ResolvedBy)
	assert.Equal(t, "boundary confirmed by survey", got.ResolutionNotes)
	require.NotNil(t, got.ResolvedAt)
	assert.Nil(t, got.DedupKey)

	a, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusPending, a.Status)
	assert.True(t, a.AIProcessed)

	entries, _, total, err := auditStore.List(ctx, audit.ListFilter{Action: audit.ActionConflictResolved}, 10, "")
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "officer1", entries[0].Actor)
	assert.Equal(t, "unresolved", entries[0].OldValues["status"])
}

func TestResolveKeepsConflictWhileOthersRemain(t *testing.T) {
	store, _, svc := setup(t)
	ctx := context.Background()
	app, conflicts := seed(t, store, registry.StatusPending, 0.9, 0.4)

	res, err := svc.Resolve(ctx, conflicts[0].ID, "officer1", "")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusConflict, res.ApplicationStatus)
	assert.Equal(t, int64(1), res.Unresolved)
	assert.InDelta(t, 0.4, res.ConflictScore, 1e-9)

	a, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusConflict, a.Status)
	assert.InDelta(t, 0.4, a.AIConflictScore, 1e-9)
}

func TestResolveApprovedApplicationKeepsStatus(t *testing.T) {
	store, _, svc := setup(t)
	_, conflicts := seed(t, store, registry.StatusApproved, 0.6)

	res, err := svc.Resolve(context.Background(), conflicts[0].ID, "officer1", "")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusApproved, res.ApplicationStatus)
}

func TestResolveTwiceRestamps(t *testing.T) {
	store, auditStore, svc := setup(t)
	ctx := context.Background()
	_, conflicts := seed(t, store, registry.StatusPending, 0.6)

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	_, err := svc.Resolve(ctx, conflicts[0].ID, "officer1", "")
	require.NoError(t, err)

	second := first.Add(time.Hour)
	svc.now = func() time.Time { return second }
	res, err := svc.Resolve(ctx, conflicts[0].ID, "officer2", "second look")
	require.NoError(t, err)
	assert.Equal(t, registry.ConflictResolved, res.PriorStatus)

	got, err := store.GetConflict(ctx, conflicts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "officer2", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(second))

	_, _, total, err := auditStore.List(ctx, audit.ListFilter{Action: audit.ActionConflictResolved}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestResolveNotFound(t *testing.T) {
	_, _, svc := setup(t)
	_, err := svc.Resolve(context.Background(), 999, "officer1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveConcurrent(t *testing.T) {
	store, _, svc := setup(t)
	ctx := context.Background()
	app, conflicts := seed(t, store, registry.StatusPending, 0.6, 0.8, 0.95)

	var wg sync.WaitGroup
	errs := make(chan error, len(conflicts)*2)
	for _, c := range conflicts {
		for range 2 {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				_, err := svc.Resolve(ctx, id, "officer", "")
				errs <- err
			}(c.ID)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	a, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusPending, a.Status)
	assert.Zero(t, a.AIConflictScore)
}
