package detection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/geometry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/identifiers"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

type fakeExtractor map[string]string

func (f fakeExtractor) ExtractText(_ context.Context, path, _ string) string {
	return f[path]
}

type fixture struct {
	db     *gorm.DB
	store  *registry.Store
	audit  *audit.Store
	texts  fakeExtractor
	engine *Engine
	seq    int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	f := &fixture{db: db, store: registry.NewStore(db), audit: audit.NewStore(db), texts: fakeExtractor{}}
	require.NoError(t, f.store.AutoMigrate())
	require.NoError(t, f.audit.AutoMigrate())
	f.engine = NewEngine(f.store, Options{
		Extractor: f.texts,
		Models:    similarity.NewMemoryModelStore(),
		Recorder:  audit.NewRecorder(f.audit, nil),
	})
	return f
}

func square(x0, y0, x1, y1 float64) geometry.Boundary {
	return geometry.NewPolygon([][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}})
}

func (f *fixture) app(t *testing.T, mutate func(*registry.Application)) *registry.Application {
	t.Helper()
	f.seq++
	a := &registry.Application{
		ReferenceNumber: fmt.Sprintf("LR-2026-%04d", f.seq),
		ApplicantName:   fmt.Sprintf("Applicant %d", f.seq),
		NRC:             fmt.Sprintf("%06d/10/1", 100000+f.seq),
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, f.store.CreateApplication(context.Background(), a))
	return a
}

func (f *fixture) parcel(t *testing.T, p registry.Parcel) *registry.Parcel {
	t.Helper()
	f.seq++
	if p.ParcelNumber == "" {
		p.ParcelNumber = fmt.Sprintf("LUS/%d", f.seq)
	}
	require.NoError(t, f.store.CreateParcel(context.Background(), &p))
	return &p
}

func (f *fixture) doc(t *testing.T, appID uint, text string, hash *string) *registry.Document {
	t.Helper()
	f.seq++
	d := &registry.Document{
		ApplicationID:    appID,
		DocumentType:     "title_deed",
		OriginalFilename: fmt.Sprintf("doc%d.pdf", f.seq),
		FilePath:         fmt.Sprintf("/uploads/doc%d.pdf", f.seq),
		MimeType:         "application/pdf",
		FileHash:         hash,
	}
	require.NoError(t, f.store.CreateDocument(context.Background(), d))
	f.texts[d.FilePath] = text
	return d
}

func (f *fixture) reload(t *testing.T, id uint) *registry.Application {
	t.Helper()
	a, err := f.store.GetApplication(context.Background(), id)
	require.NoError(t, err)
	return a
}

func strPtr(s string) *string { return &s }

func TestLocationMatchEndToEnd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.parcel(t, registry.Parcel{OwnerName: "Mary", OwnerNRC: "999999/99/9", Location: "Plot 12, Chalala, Lusaka"})
	app := f.app(t, func(a *registry.Application) { a.Location = "chalala" })

	report, err := f.engine.Run(ctx, app.ID, "officer")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)

	c := report.Created[0]
	assert.Equal(t, registry.ConflictLocationMatch, c.ConflictType)
	assert.InDelta(t, 0.4, c.ConfidenceScore, 1e-9)
	assert.Equal(t, registry.SeverityMedium, c.Severity)
	assert.Contains(t, c.Title, "Location Match: ")

	got := f.reload(t, app.ID)
	assert.Equal(t, registry.StatusConflict, got.Status)
	assert.InDelta(t, 0.4, got.AIConflictScore, 1e-9)
	assert.True(t, got.AIProcessed)

	entries, _, total, err := f.audit.List(ctx, audit.ListFilter{Action: audit.ActionConflictDetection}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "officer", entries[0].Actor)
}

func TestSpatialOverlapConfidence(t *testing.T) {
	tests := []struct {
		name     string
		parcel   geometry.Boundary
		app      geometry.Boundary
		wantConf float64
		wantSev  registry.Severity
		wantPct  float64
	}{
		{"application contains parcel", square(0, 0, 1, 1), square(-1, -1, 2, 2), 0.95, registry.SeverityHigh, 100},
		{"half of parcel", square(0, 0, 2, 2), square(1, 0, 3, 2), 0.65, registry.SeverityMedium, 50},
		{"boundary at 0.7", square(0, 0, 9, 1), square(0, 0, 5, 1), 0.7, registry.SeverityHigh, 500.0 / 9},
		{"touching edge", square(0, 0, 1, 1), square(1, 0, 2, 1), 0.2, registry.SeverityMedium, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			p := f.parcel(t, registry.Parcel{Boundary: tc.parcel})
			app := f.app(t, func(a *registry.Application) { a.Boundary = tc.app })

			report, err := f.engine.Run(context.Background(), app.ID, "system")
			require.NoError(t, err)
			require.Len(t, report.Created, 1)
			c := report.Created[0]
			assert.Equal(t, registry.ConflictSpatialOverlap, c.ConflictType)
			assert.InDelta(t, tc.wantConf, c.ConfidenceScore, 1e-9)
			assert.Equal(t, tc.wantSev, c.Severity)
			require.NotNil(t, c.OverlapPercentage)
			assert.InDelta(t, tc.wantPct, *c.OverlapPercentage, 1e-6)
			require.NotNil(t, c.ParcelID)
			assert.Equal(t, p.ID, *c.ParcelID)
		})
	}
}

func TestDisjointBoundaryRaisesNothing(t *testing.T) {
	f := setup(t)
	f.parcel(t, registry.Parcel{Boundary: square(0, 0, 1, 1)})
	app := f.app(t, func(a *registry.Application) { a.Boundary = square(5, 5, 6, 6) })

	report, err := f.engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Zero(t, report.Total)

	got := f.reload(t, app.ID)
	assert.Equal(t, registry.StatusPending, got.Status)
	assert.Zero(t, got.AIConflictScore)
	assert.True(t, got.AIProcessed)
}

func TestBestReasonPerParcel(t *testing.T) {
	f := setup(t)
	app := f.app(t, func(a *registry.Application) {
		a.NRC = "123456/10/1"
		a.Location = "Chongwe"
	})
	f.parcel(t, registry.Parcel{OwnerNRC: "123456/10/1", Location: "Chongwe East"})

	report, err := f.engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, registry.ConflictOwnerDuplicate, report.Created[0].ConflictType)
	assert.InDelta(t, 0.6, report.Created[0].ConfidenceScore, 1e-9)
}

func TestOwnParcelIsIgnored(t *testing.T) {
	f := setup(t)
	app := f.app(t, func(a *registry.Application) { a.Location = "Kafue" })
	f.parcel(t, registry.Parcel{Location: "Kafue", ApplicationID: &app.ID})

	report, err := f.engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
}

func TestInvalidGeometryIsSkipped(t *testing.T) {
	f := setup(t)
	var bad geometry.Boundary
	require.NoError(t, bad.UnmarshalJSON([]byte(`{"type":"Point","coordinates":[1,1]}`)))
	f.parcel(t, registry.Parcel{Boundary: bad})
	app := f.app(t, func(a *registry.Application) { a.Boundary = square(0, 0, 1, 1) })

	report, err := f.engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, 1, report.Skipped)
}

func TestHashDuplicateOnceAcrossReruns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.app(t, nil)
	b := f.app(t, nil)
	f.doc(t, a.ID, "", strPtr("aaaa"))
	f.doc(t, a.ID, "", strPtr("bbbb"))
	f.doc(t, b.ID, "", strPtr("aaaa"))
	f.doc(t, b.ID, "", strPtr("bbbb"))

	report, err := f.engine.DetectAllDuplicates(ctx, a.ID, "system")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	c := report.Created[0]
	assert.Equal(t, registry.ConflictDocumentDuplicate, c.ConflictType)
	assert.Equal(t, registry.CounterpartApplication, c.CounterpartKind)
	assert.Equal(t, b.ID, c.CounterpartID)
	assert.Equal(t, 1.0, c.ConfidenceScore)
	assert.Equal(t, registry.SeverityHigh, c.Severity)

	again, err := f.engine.DetectAllDuplicates(ctx, a.ID, "system")
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 1, again.Existing)

	all, err := f.store.ListConflicts(ctx, registry.ConflictFilter{ApplicationID: a.ID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.InDelta(t, 1.0, f.reload(t, a.ID).AIDuplicateScore, 1e-9)
}

func TestIdentityDuplicateIsSymmetric(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.app(t, func(x *registry.Application) { x.NRC = "123456/10/1"; x.TPIN = "1002003004" })
	b := f.app(t, func(x *registry.Application) { x.NRC = "654321/10/1"; x.TPIN = "1002003004" })

	ra, err := f.engine.Run(ctx, a.ID, "system")
	require.NoError(t, err)
	rb, err := f.engine.Run(ctx, b.ID, "system")
	require.NoError(t, err)

	pick := func(r *Report) *registry.Conflict {
		for i := range r.Created {
			if r.Created[i].ConflictType == registry.ConflictIdentityDuplicate {
				return &r.Created[i]
			}
		}
		return nil
	}
	ca, cb := pick(ra), pick(rb)
	require.NotNil(t, ca)
	require.NotNil(t, cb)
	assert.Equal(t, b.ID, ca.CounterpartID)
	assert.Equal(t, a.ID, cb.CounterpartID)
	assert.InDelta(t, 0.95, ca.ConfidenceScore, 1e-9)
	assert.Equal(t, registry.SeverityMedium, ca.Severity)

	matches, err := f.engine.Identity().Check(ctx, " 123456/10/1 ", "", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, a.ID, matches[0].ID)

	none, err := f.engine.Identity().Check(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIdentityDuplicateLinksParcel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.app(t, func(x *registry.Application) { x.NRC = "123456/10/1"; x.Status = registry.StatusApproved })
	p, err := f.store.RegisterParcel(ctx, a, "LUS/1")
	require.NoError(t, err)
	b := f.app(t, func(x *registry.Application) { x.NRC = "123456/10/1" })

	report, err := f.engine.DetectAllDuplicates(ctx, b.ID, "system")
	require.NoError(t, err)
	require.NotEmpty(t, report.Created)
	for _, c := range report.Created {
		if c.ConflictType == registry.ConflictIdentityDuplicate {
			require.NotNil(t, c.ParcelID)
			assert.Equal(t, p.ID, *c.ParcelID)
		}
	}
}

func TestContentDuplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := f.app(t, func(x *registry.Application) {
		x.NRC = "222222/22/2"
		x.Email = "owner@example.com"
	})
	app := f.app(t, func(x *registry.Application) { x.NRC = "333333/33/3" })
	f.doc(t, app.ID, "Sworn by holder of NRC 222222/22/2, contact OWNER@example.com", nil)

	report, err := f.engine.DetectAllDuplicates(ctx, app.ID, "system")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	c := report.Created[0]
	assert.Equal(t, registry.ConflictContentDuplicate, c.ConflictType)
	assert.Equal(t, other.ID, c.CounterpartID)
	assert.InDelta(t, 0.6, c.ConfidenceScore, 1e-9)
	assert.Equal(t, registry.SeverityHigh, c.Severity)
	assert.Contains(t, c.Description, "Matching NRC: 222222/22/2")
	assert.Contains(t, c.Description, "Matching EMAIL: owner@example.com")
}

func TestContentScoreBelowThreshold(t *testing.T) {
	f := setup(t)
	f.app(t, func(x *registry.Application) { x.Email = "a@example.com"; x.Phone = "0977123456" })
	app := f.app(t, nil)
	f.doc(t, app.ID, "call +260977123456 or mail a@example.com", nil)

	report, err := f.engine.DetectAllDuplicates(context.Background(), app.ID, "system")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
}

func TestDocumentSimilarity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	text := "Certificate of title for plot 42 Chalala Lusaka issued to the registered proprietor"
	a := f.app(t, nil)
	b := f.app(t, nil)
	other := f.doc(t, b.ID, text, nil)
	f.doc(t, b.ID, "survey diagram of an unrelated farm in Mkushi district", nil)
	f.doc(t, a.ID, text, nil)

	report, err := f.engine.Run(ctx, a.ID, "system")
	require.NoError(t, err)
	var found *registry.Conflict
	for i := range report.Created {
		if report.Created[i].ConflictType == registry.ConflictDocumentDuplicate &&
			report.Created[i].CounterpartKind == registry.CounterpartDocument {
			found = &report.Created[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, other.ID, found.CounterpartID)
	assert.InDelta(t, 1.0, found.ConfidenceScore, 1e-9)
	assert.Equal(t, registry.SeverityHigh, found.Severity)
	assert.Contains(t, found.Description, b.ReferenceNumber)
}

func TestIdenticalFileRecordedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	text := "Offer letter for stand 1187 Kabulonga Lusaka addressed to the applicant"
	a := f.app(t, nil)
	b := f.app(t, nil)
	f.doc(t, a.ID, text, strPtr("abc123"))
	f.doc(t, b.ID, text, strPtr("abc123"))

	report, err := f.engine.Run(ctx, b.ID, "system")
	require.NoError(t, err)

	var dups []registry.Conflict
	for _, c := range report.Created {
		if c.ConflictType == registry.ConflictDocumentDuplicate {
			dups = append(dups, c)
		}
	}
	require.Len(t, dups, 1)
	assert.Equal(t, registry.CounterpartApplication, dups[0].CounterpartKind)
	assert.Equal(t, a.ID, dups[0].CounterpartID)
	assert.Contains(t, dups[0].Description, "EXACT DOCUMENT DUPLICATE DETECTED")
}

func TestDocumentSimilarityOnePerOtherDocument(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	text := "Certificate of title for plot 42 Chalala Lusaka issued to the registered proprietor"
	a := f.app(t, nil)
	b := f.app(t, nil)
	other := f.doc(t, b.ID, text, nil)
	f.doc(t, a.ID, text, nil)
	f.doc(t, a.ID, text, nil)

	report, err := f.engine.Run(ctx, a.ID, "system")
	require.NoError(t, err)

	var dups []registry.Conflict
	for _, c := range report.Created {
		if c.CounterpartKind == registry.CounterpartDocument {
			dups = append(dups, c)
		}
	}
	require.Len(t, dups, 1)
	assert.Equal(t, other.ID, dups[0].CounterpartID)
	assert.InDelta(t, 1.0, dups[0].ConfidenceScore, 1e-9)
}

// blockingExtractor answers instantly for the listed paths and otherwise
// waits for the context to end.
type blockingExtractor map[string]string

func (b blockingExtractor) ExtractText(ctx context.Context, path, _ string) string {
	if t, ok := b[path]; ok {
		return t
	}
	<-ctx.Done()
	return ""
}

func TestContentScanTimeout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.app(t, nil)
	mine := f.doc(t, app.ID, "", nil)
	for i := 0; i < 2; i++ {
		o := f.app(t, nil)
		f.doc(t, o.ID, "", nil)
	}

	engine := NewEngine(f.store, Options{
		Config:    &Config{SimilarityTimeout: 20 * time.Millisecond, Detectors: AllDetectors},
		Extractor: blockingExtractor{mine.FilePath: "NRC 100001/10/1"},
	})
	_, err := engine.DetectAllDuplicates(ctx, app.ID, "system")

	var failed *DetectionFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, DetectorContent, failed.Detector)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContentScoreUsesSharedKinds(t *testing.T) {
	a := identifiers.NewSet()
	a.Add(identifiers.KindNRC, "222222/22/2")
	a.Add(identifiers.KindPhone, "0977123456")
	b := identifiers.NewSet()
	b.Add(identifiers.KindNRC, "222222/22/2")
	b.Add(identifiers.KindEmail, "x@example.com")

	score, kinds := ContentScore(a, b)
	assert.InDelta(t, ContentNRCWeight, score, 1e-9)
	assert.Equal(t, []identifiers.Kind{identifiers.KindNRC}, kinds)
}

func TestApplicationNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Run(context.Background(), 4242, "system")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestPersistFailureRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.app(t, func(a *registry.Application) { a.Location = "Ndola" })
	f.parcel(t, registry.Parcel{Location: "Ndola"})

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_outcome", func(tx *gorm.DB) {
		if tx.Statement.Table == "applications" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := f.engine.Run(ctx, app.ID, "system")
	var failed *DetectionFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, app.ID, failed.ApplicationID)
	assert.Equal(t, StagePersist, failed.Detector)
	assert.ErrorContains(t, err, "disk full")

	all, err := f.store.ListConflicts(ctx, registry.ConflictFilter{ApplicationID: app.ID})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.False(t, f.reload(t, app.ID).AIProcessed)

	_, _, total, err := f.audit.List(ctx, audit.ListFilter{Action: audit.ActionDetectionFailed}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDetectorErrorNamesDetector(t *testing.T) {
	f := setup(t)
	app := f.app(t, func(a *registry.Application) { a.NRC = "123456/10/1" })
	require.NoError(t, f.db.Migrator().DropTable(&registry.Parcel{}))

	_, err := f.engine.Run(context.Background(), app.ID, "system")
	var failed *DetectionFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, DetectorSpatial, failed.Detector)
}

func TestLoadFailureWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "applications"`).WillReturnError(errors.New("connection reset by peer"))

	engine := NewEngine(registry.NewStore(db), Options{})
	_, err = engine.Run(context.Background(), 7, "system")

	var failed *DetectionFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, StageLoad, failed.Detector)
	assert.Equal(t, uint(7), failed.ApplicationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolvedFindingCanReopen(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	app := f.app(t, func(a *registry.Application) { a.Location = "Mazabuka" })
	f.parcel(t, registry.Parcel{Location: "Mazabuka Central"})

	first, err := f.engine.Run(ctx, app.ID, "system")
	require.NoError(t, err)
	require.Len(t, first.Created, 1)
	require.NoError(t, f.store.MarkConflictResolved(ctx, first.Created[0].ID, "officer", "checked", first.Created[0].CreatedAt))

	second, err := f.engine.Run(ctx, app.ID, "system")
	require.NoError(t, err)
	assert.Len(t, second.Created, 1)
	assert.Equal(t, int64(1), second.Unresolved)
}

func TestApprovedApplicationKeepsStatus(t *testing.T) {
	f := setup(t)
	app := f.app(t, func(a *registry.Application) { a.Location = "Kitwe"; a.Status = registry.StatusApproved })
	f.parcel(t, registry.Parcel{Location: "Kitwe"})

	report, err := f.engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusApproved, report.Status)
	assert.Equal(t, registry.StatusApproved, f.reload(t, app.ID).Status)
}

func TestRetrain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.app(t, nil)
	f.doc(t, a.ID, "title deed for plot seven", nil)
	f.doc(t, a.ID, "", nil)

	m, err := f.engine.Retrain(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, 1, m.DocCount)

	none := NewEngine(f.store, Options{})
	_, err = none.Retrain(ctx, "admin")
	assert.ErrorIs(t, err, ErrNoModelStore)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	f := setup(t)
	engine := NewEngine(f.store, Options{Metrics: m})
	app := f.app(t, func(a *registry.Application) { a.Location = "Solwezi" })
	f.parcel(t, registry.Parcel{Location: "Solwezi"})

	_, err = engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)
	_, err = engine.Run(context.Background(), app.ID, "system")
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(ModeFull, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FindingsTotal.WithLabelValues(string(registry.ConflictLocationMatch), "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FindingsTotal.WithLabelValues(string(registry.ConflictLocationMatch), "existing")))

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, registry.SeverityHigh, SeverityFor(0.7))
	assert.Equal(t, registry.SeverityHigh, SeverityFor(geometry.OverlapConfidence(5.0/9)))
	assert.Equal(t, registry.SeverityMedium, SeverityFor(0.6999))
	assert.Equal(t, registry.SeverityMedium, SeverityFor(0.65))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LANDREG_SIMILARITY_TIMEOUT", "9")
	t.Setenv("LANDREG_DETECTORS", "Spatial, hash,bogus")
	cfg := ConfigFromEnv()
	assert.Equal(t, []string{DetectorSpatial, DetectorHash}, cfg.Detectors)
	assert.Equal(t, 9*time.Second, cfg.SimilarityTimeout)

	f := setup(t)
	e := NewEngine(f.store, Options{Config: cfg})
	require.Len(t, e.full, 2)
	assert.Equal(t, DetectorSpatial, e.full[0].Name())
}
