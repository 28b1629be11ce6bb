// Package registry is the application store: land applications, registered
// parcels, their documents and the conflict records raised against them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/identifiers"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store provides typed access to the registry tables.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// AutoMigrate creates or updates the registry tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(Models()...)
}

// WithTx runs fn inside a transaction. Returning an error rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

// CreateApplication inserts a new application in pending state.
func (s *Store) CreateApplication(ctx context.Context, app *Application) error {
	if app.Status == "" {
		app.Status = StatusPending
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetApplication returns the application with its documents.
func (s *Store) GetApplication(ctx context.Context, id uint) (*Application, error) {
	var app Application
	if err := s.db.WithContext(ctx).Preload("Documents").First(&app, id).Error; err != nil {
		return nil, notFound(err, "application", id)
	}
	return &app, nil
}

// ApplicationsByIDs returns the applications whose id is in ids.
func (s *Store) ApplicationsByIDs(ctx context.Context, ids []uint) ([]Application, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var apps []Application
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// OtherApplications returns every application except excludeID, with their
// documents.
func (s *Store) OtherApplications(ctx context.Context, excludeID uint) ([]Application, error) {
	var apps []Application
	err := s.db.WithContext(ctx).Preload("Documents").Where("id <> ?", excludeID).Order("id").Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// identityForms returns the distinct spellings to match a stored identifier
// against: the value as given and its normalized form.
func identityForms(kind identifiers.Kind, value string) []string {
	forms := mapset.NewThreadUnsafeSet[string]()
	if v := strings.TrimSpace(value); v != "" {
		forms.Add(v)
	}
	if n := identifiers.Normalize(kind, value); n != "" {
		forms.Add(n)
	}
	return forms.ToSlice()
}

// ApplicationsByIdentity returns the applications, other than excludeID,
// sharing the NRC or the TPIN. Each application appears at most once.
func (s *Store) ApplicationsByIdentity(ctx context.Context, nrc, tpin string, excludeID uint) ([]Application, error) {
	nrcs := identityForms(identifiers.KindNRC, nrc)
	tpins := identityForms(identifiers.KindTPIN, tpin)
	if len(nrcs) == 0 && len(tpins) == 0 {
		return nil, nil
	}

	q := s.db.WithContext(ctx).Model(&Application{}).Where("id <> ?", excludeID)
	switch {
	case len(nrcs) > 0 && len(tpins) > 0:
		q = q.Where(s.db.Where("nrc IN ?", nrcs).Or("tpin IN ?", tpins))
	case len(nrcs) > 0:
		q = q.Where("nrc IN ?", nrcs)
	default:
		q = q.Where("tpin IN ?", tpins)
	}

	var apps []Application
	if err := q.Order("id").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("find identity matches: %w", err)
	}
	return apps, nil
}

// CreateParcel inserts a registered parcel.
func (s *Store) CreateParcel(ctx context.Context, p *Parcel) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create parcel: %w", err)
	}
	return nil
}

// RegisterParcel creates the parcel mirroring an approved application.
func (s *Store) RegisterParcel(ctx context.Context, app *Application, parcelNumber string) (*Parcel, error) {
	if app.Status != StatusApproved {
		return nil, fmt.Errorf("register parcel for application %d: status is %s", app.ID, app.Status)
	}
	id := app.ID
	p := &Parcel{
		ParcelNumber:  parcelNumber,
		OwnerName:     app.ApplicantName,
		OwnerNRC:      app.NRC,
		OwnerPhone:    app.Phone,
		OwnerEmail:    app.Email,
		Size:          app.LandSize,
		Location:      app.Location,
		Boundary:      app.Boundary,
		ApplicationID: &id,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "parcel_number"}}, DoNothing: true}).
		Create(p).Error
	if err != nil {
		return nil, fmt.Errorf("register parcel: %w", err)
	}
	return p, nil
}

// ParcelIDsByApplication maps each of applicationIDs that created a parcel
// to that parcel's id.
func (s *Store) ParcelIDsByApplication(ctx context.Context, applicationIDs []uint) (map[uint]uint, error) {
	out := make(map[uint]uint, len(applicationIDs))
	if len(applicationIDs) == 0 {
		return out, nil
	}
	var parcels []Parcel
	err := s.db.WithContext(ctx).Select("id", "application_id").
		Where("application_id IN ?", applicationIDs).Order("id").Find(&parcels).Error
	if err != nil {
		return nil, fmt.Errorf("find parcels by application: %w", err)
	}
	for _, p := range parcels {
		if _, seen := out[*p.ApplicationID]; !seen {
			out[*p.ApplicationID] = p.ID
		}
	}
	return out, nil
}

// ParcelsByOwnerNRC returns parcels whose owner NRC matches nrc.
func (s *Store) ParcelsByOwnerNRC(ctx context.Context, nrc string) ([]Parcel, error) {
	forms := identityForms(identifiers.KindNRC, nrc)
	if len(forms) == 0 {
		return nil, nil
	}
	var parcels []Parcel
	if err := s.db.WithContext(ctx).Where("owner_nrc IN ?", forms).Order("id").Find(&parcels).Error; err != nil {
		return nil, fmt.Errorf("find parcels by owner: %w", err)
	}
	return parcels, nil
}

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// ParcelsByLocation returns parcels whose location contains location,
// ignoring case.
func (s *Store) ParcelsByLocation(ctx context.Context, location string) ([]Parcel, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(location)) + "%"
	var parcels []Parcel
	err := s.db.WithContext(ctx).
		Where("LOWER(location) LIKE ? ESCAPE '!'", pattern).
		Order("id").Find(&parcels).Error
	if err != nil {
		return nil, fmt.Errorf("find parcels by location: %w", err)
	}
	return parcels, nil
}

// ParcelsWithBoundary returns every parcel that has a stored boundary.
func (s *Store) ParcelsWithBoundary(ctx context.Context) ([]Parcel, error) {
	var parcels []Parcel
	if err := s.db.WithContext(ctx).Where("boundary IS NOT NULL").Order("id").Find(&parcels).Error; err != nil {
		return nil, fmt.Errorf("list parcels with boundary: %w", err)
	}
	return parcels, nil
}

// CreateDocument inserts a document record.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Documents returns the documents attached to an application.
func (s *Store) Documents(ctx context.Context, applicationID uint) ([]Document, error) {
	var docs []Document
	if err := s.db.WithContext(ctx).Where("application_id = ?", applicationID).Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DocumentsExcept returns the documents of every application but excludeID.
func (s *Store) DocumentsExcept(ctx context.Context, excludeID uint) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("application_id <> ?", excludeID).
		Order("application_id").Order("id").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// AllDocuments returns every document in the registry.
func (s *Store) AllDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := s.db.WithContext(ctx).Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DocumentsByHash returns documents with the given content hash that belong
// to applications other than excludeID.
func (s *Store) DocumentsByHash(ctx context.Context, hash string, excludeID uint) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("file_hash = ? AND application_id <> ?", hash, excludeID).
		Order("id").Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("find documents by hash: %w", err)
	}
	return docs, nil
}
