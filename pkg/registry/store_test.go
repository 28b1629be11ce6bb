package registry

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/geometry"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := NewStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func strPtr(s string) *string { return &s }

func TestApplicationLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	app := &Application{ReferenceNumber: "LR-2026-0001", ApplicantName: "Jane Banda", NRC: "123456/12/1"}
	require.NoError(t, s.CreateApplication(ctx, app))
	assert.Equal(t, StatusPending, app.Status)
	assert.False(t, app.SubmittedAt.IsZero())

	require.NoError(t, s.CreateDocument(ctx, &Document{ApplicationID: app.ID, DocumentType: "nrc_copy", FileHash: strPtr("abc")}))

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "LR-2026-0001", got.ReferenceNumber)
	assert.Len(t, got.Documents, 1)
	assert.True(t, got.Boundary.IsZero())

	_, err = s.GetApplication(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	dup := &Application{ReferenceNumber: "LR-2026-0001", ApplicantName: "Other"}
	assert.Error(t, s.CreateApplication(ctx, dup))
}

func TestApplicationsByIdentity(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	a := &Application{ReferenceNumber: "LR-2026-0001", ApplicantName: "A", NRC: "100001/10/1", TPIN: "1002003004"}
	b := &Application{ReferenceNumber: "LR-2026-0002", ApplicantName: "B", NRC: "100001/10/1"}
	c := &Application{ReferenceNumber: "LR-2026-0003", ApplicantName: "C", NRC: "200002/20/2", TPIN: "1002003004"}
	d := &Application{ReferenceNumber: "LR-2026-0004", ApplicantName: "D", NRC: "300003/30/3"}
	for _, app := range []*Application{a, b, c, d} {
		require.NoError(t, s.CreateApplication(ctx, app))
	}

	matches, err := s.ApplicationsByIdentity(ctx, " 100001 / 10 / 1", "100-200-3004", a.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, b.ID, matches[0].ID)
	assert.Equal(t, c.ID, matches[1].ID)

	matches, err = s.ApplicationsByIdentity(ctx, "", "", a.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestParcelQueries(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	p1 := &Parcel{ParcelNumber: "LUS/1", OwnerNRC: "123456/12/1", Location: "Plot 12, Northrise Extension",
		Boundary: geometry.NewPolygon([][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}})}
	p2 := &Parcel{ParcelNumber: "LUS/2", OwnerNRC: "654321/10/1", Location: "100% Farm_Block"}
	require.NoError(t, s.CreateParcel(ctx, p1))
	require.NoError(t, s.CreateParcel(ctx, p2))

	byOwner, err := s.ParcelsByOwnerNRC(ctx, "123456/12/1")
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, p1.ID, byOwner[0].ID)

	byLoc, err := s.ParcelsByLocation(ctx, "plot 12, NORTHRISE")
	require.NoError(t, err)
	require.Len(t, byLoc, 1)

	byLoc, err = s.ParcelsByLocation(ctx, "100% farm_")
	require.NoError(t, err)
	require.Len(t, byLoc, 1)
	assert.Equal(t, p2.ID, byLoc[0].ID)

	byLoc, err = s.ParcelsByLocation(ctx, "0_F")
	require.NoError(t, err)
	assert.Empty(t, byLoc)

	byLoc, err = s.ParcelsByLocation(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, byLoc)

	withGeom, err := s.ParcelsWithBoundary(ctx)
	require.NoError(t, err)
	require.Len(t, withGeom, 1)
	assert.False(t, withGeom[0].Boundary.IsZero())
	_, err = withGeom[0].Boundary.Geometry()
	assert.NoError(t, err)
}

func TestRegisterParcel(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	app := &Application{ReferenceNumber: "LR-2026-0009", ApplicantName: "Jane", NRC: "123456/12/1",
		Location: "Chongwe", Boundary: geometry.NewPolygon([][2]float64{{0, 0}, {1, 0}, {1, 1}})}
	require.NoError(t, s.CreateApplication(ctx, app))

	_, err := s.RegisterParcel(ctx, app, "CHO/9")
	assert.Error(t, err)

	app.Status = StatusApproved
	p, err := s.RegisterParcel(ctx, app, "CHO/9")
	require.NoError(t, err)
	require.NotNil(t, p.ApplicationID)
	assert.Equal(t, app.ID, *p.ApplicationID)
	assert.JSONEq(t, string(app.Boundary.GeoJSON()), string(p.Boundary.GeoJSON()))

	ids, err := s.ParcelIDsByApplication(ctx, []uint{app.ID, app.ID + 100})
	require.NoError(t, err)
	assert.Equal(t, map[uint]uint{app.ID: p.ID}, ids)
}

func TestDocumentsByHash(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, &Document{ApplicationID: 1, FileHash: strPtr("h1")}))
	require.NoError(t, s.CreateDocument(ctx, &Document{ApplicationID: 2, FileHash: strPtr("h1")}))
	require.NoError(t, s.CreateDocument(ctx, &Document{ApplicationID: 3, FileHash: strPtr("h2")}))
	require.NoError(t, s.CreateDocument(ctx, &Document{ApplicationID: 3}))

	docs, err := s.DocumentsByHash(ctx, "h1", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, uint(2), docs[0].ApplicationID)

	others, err := s.DocumentsExcept(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, others, 2)

	all, err := s.AllDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInsertConflictIdempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	newConflict := func() *Conflict {
		return &Conflict{
			ApplicationID:   1,
			CounterpartKind: CounterpartApplication,
			CounterpartID:   2,
			ConflictType:    ConflictDocumentDuplicate,
			Title:           "dup",
			ConfidenceScore: 1.0,
			Severity:        SeverityHigh,
		}
	}

	created, err := s.InsertConflict(ctx, newConflict())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.InsertConflict(ctx, newConflict())
	require.NoError(t, err)
	assert.False(t, created)

	other := newConflict()
	other.ConflictType = ConflictIdentityDuplicate
	created, err = s.InsertConflict(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)

	list, err := s.ListConflicts(ctx, ConflictFilter{ApplicationID: 1})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestResolveReleasesDedupKey(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	c := &Conflict{ApplicationID: 1, CounterpartKind: CounterpartParcel, CounterpartID: 7,
		ConflictType: ConflictLocationMatch, Title: "loc", ConfidenceScore: 0.4, Severity: SeverityMedium}
	_, err := s.InsertConflict(ctx, c)
	require.NoError(t, err)

	require.NoError(t, s.MarkConflictResolved(ctx, c.ID, "officer", "checked on site", time.Now()))

	got, err := s.GetConflict(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ConflictResolved, got.Status)
	assert.Nil(t, got.DedupKey)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, "officer", got.ResolvedBy)

	again := &Conflict{ApplicationID: 1, CounterpartKind: CounterpartParcel, CounterpartID: 7,
		ConflictType: ConflictLocationMatch, Title: "loc", ConfidenceScore: 0.4, Severity: SeverityMedium}
	created, err := s.InsertConflict(ctx, again)
	require.NoError(t, err)
	assert.True(t, created)

	assert.ErrorIs(t, s.MarkConflictResolved(ctx, 999, "x", "", time.Now()), ErrNotFound)
}

func TestUnresolvedStatsAndOutcome(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	app := &Application{ReferenceNumber: "LR-2026-0100", ApplicantName: "A"}
	require.NoError(t, s.CreateApplication(ctx, app))

	for i, c := range []Conflict{
		{ConflictType: ConflictLocationMatch, ConfidenceScore: 0.4, CounterpartKind: CounterpartParcel, CounterpartID: 1},
		{ConflictType: ConflictIdentityDuplicate, ConfidenceScore: 0.95, CounterpartKind: CounterpartApplication, CounterpartID: 2},
		{ConflictType: ConflictSpatialOverlap, ConfidenceScore: 0.65, CounterpartKind: CounterpartParcel, CounterpartID: 3},
	} {
		c := c
		c.ApplicationID = app.ID
		c.Title = "c"
		c.Severity = SeverityMedium
		_, err := s.InsertConflict(ctx, &c)
		require.NoError(t, err, i)
	}

	st, err := s.UnresolvedStats(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Unresolved)
	assert.InDelta(t, 0.95, st.MaxConfidence, 1e-9)
	assert.InDelta(t, 0.95, st.MaxDuplicateScore, 1e-9)

	require.NoError(t, s.ApplyOutcome(ctx, app.ID, DetectionOutcome{
		ConflictScore: st.MaxConfidence, DuplicateScore: st.MaxDuplicateScore,
		MarkProcessed: true, Status: StatusConflict,
	}))
	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.AIProcessed)
	assert.Equal(t, StatusConflict, got.Status)

	// A later outcome without MarkProcessed never clears the flag.
	require.NoError(t, s.ApplyOutcome(ctx, app.ID, DetectionOutcome{Status: StatusPending}))
	got, err = s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.AIProcessed)
	assert.Zero(t, got.AIConflictScore)

	assert.ErrorIs(t, s.ApplyOutcome(ctx, 999, DetectionOutcome{}), ErrNotFound)
}

func TestWithTxRollback(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Store) error {
		require.NoError(t, tx.CreateApplication(ctx, &Application{ReferenceNumber: "LR-2026-0200", ApplicantName: "A"}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	others, err := s.OtherApplications(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestBookkeepingStatus(t *testing.T) {
	tests := []struct {
		current    ApplicationStatus
		unresolved int64
		want       ApplicationStatus
	}{
		{StatusPending, 0, StatusPending},
		{StatusPending, 2, StatusConflict},
		{StatusConflict, 1, StatusConflict},
		{StatusConflict, 0, StatusPending},
		{StatusApproved, 3, StatusApproved},
		{StatusRejected, 0, StatusRejected},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, BookkeepingStatus(tc.current, tc.unresolved), "%s/%d", tc.current, tc.unresolved)
	}
}

func TestConflictTypeIsDuplicate(t *testing.T) {
	assert.True(t, ConflictDocumentDuplicate.IsDuplicate())
	assert.True(t, ConflictIdentityDuplicate.IsDuplicate())
	assert.True(t, ConflictContentDuplicate.IsDuplicate())
	assert.False(t, ConflictSpatialOverlap.IsDuplicate())
	assert.False(t, ConflictLocationMatch.IsDuplicate())
	assert.False(t, ConflictOwnerDuplicate.IsDuplicate())
	assert.Equal(t, "4:spatial_overlap:parcel:9", DedupKeyFor(4, ConflictSpatialOverlap, CounterpartParcel, 9))
}
