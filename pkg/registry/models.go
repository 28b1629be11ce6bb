package registry

import (
	"fmt"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/geometry"
)

// ApplicationStatus is the processing status of a land application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusConflict ApplicationStatus = "conflict"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Application is a submitted land-registration record.
type Application struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	ReferenceNumber  string            `gorm:"column:reference_number;uniqueIndex;size:32;not null" json:"referenceNumber"`
	ApplicantName    string            `gorm:"column:applicant_name;not null" json:"applicantName"`
	NRC              string            `gorm:"column:nrc;index;size:32" json:"nrc"`
	TPIN             string            `gorm:"column:tpin;index;size:16" json:"tpin,omitempty"`
	Phone            string            `gorm:"column:phone" json:"phone,omitempty"`
	Email            string            `gorm:"column:email" json:"email,omitempty"`
	Location         string            `gorm:"column:location;type:text" json:"location"`
	LandSize         float64           `gorm:"column:land_size" json:"landSize"`
	Boundary         geometry.Boundary `gorm:"column:boundary" json:"boundary"`
	Status           ApplicationStatus `gorm:"column:status;index;not null;default:pending" json:"status"`
	AIConflictScore  float64           `gorm:"column:ai_conflict_score;default:0" json:"aiConflictScore"`
	AIDuplicateScore float64           `gorm:"column:ai_duplicate_score;default:0" json:"aiDuplicateScore"`
	AIProcessed      bool              `gorm:"column:ai_processed;default:false" json:"aiProcessed"`
	SubmittedAt      time.Time         `gorm:"column:submitted_at" json:"submittedAt"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`

	Documents []Document `gorm:"foreignKey:ApplicationID" json:"documents,omitempty"`
}

// TableName returns the GORM table name.
func (Application) TableName() string { return "applications" }

// Parcel is a registered piece of land, the ground truth new applications are
// checked against.
type Parcel struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ParcelNumber  string            `gorm:"column:parcel_number;uniqueIndex;size:64;not null" json:"parcelNumber"`
	OwnerName     string            `gorm:"column:owner_name" json:"ownerName"`
	OwnerNRC      string            `gorm:"column:owner_nrc;index;size:32" json:"ownerNrc"`
	OwnerPhone    string            `gorm:"column:owner_phone" json:"ownerPhone,omitempty"`
	OwnerEmail    string            `gorm:"column:owner_email" json:"ownerEmail,omitempty"`
	Size          float64           `gorm:"column:size" json:"size"`
	Location      string            `gorm:"column:location;type:text" json:"location"`
	Boundary      geometry.Boundary `gorm:"column:boundary" json:"boundary"`
	ApplicationID *uint             `gorm:"column:application_id;index" json:"applicationId,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// TableName returns the GORM table name.
func (Parcel) TableName() string { return "parcels" }

// Document is a file attached to an application. FileHash is the SHA-256 of
// the content computed at upload and never changes.
type Document struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ApplicationID    uint      `gorm:"column:application_id;index;not null" json:"applicationId"`
	DocumentType     string    `gorm:"column:document_type" json:"documentType"`
	Filename         string    `gorm:"column:filename" json:"filename"`
	OriginalFilename string    `gorm:"column:original_filename" json:"originalFilename"`
	FilePath         string    `gorm:"column:file_path" json:"-"`
	FileSize         int64     `gorm:"column:file_size" json:"fileSize"`
	MimeType         string    `gorm:"column:mime_type" json:"mimeType"`
	FileHash         *string   `gorm:"column:file_hash;index;size:64" json:"fileHash,omitempty"`
	Status           string    `gorm:"column:status;default:uploaded" json:"status"`
	UploadedAt       time.Time `gorm:"column:uploaded_at" json:"uploadedAt"`
}

// TableName returns the GORM table name.
func (Document) TableName() string { return "documents" }

// ConflictType enumerates the findings the detectors produce.
type ConflictType string

const (
	ConflictSpatialOverlap    ConflictType = "spatial_overlap"
	ConflictOwnerDuplicate    ConflictType = "owner_duplicate"
	ConflictLocationMatch     ConflictType = "location_match"
	ConflictDocumentDuplicate ConflictType = "document_duplicate"
	ConflictIdentityDuplicate ConflictType = "identity_duplicate"
	ConflictContentDuplicate  ConflictType = "content_duplicate"
)

// IsDuplicate reports whether the type is one of the duplicate families that
// feed the application's duplicate score.
func (c ConflictType) IsDuplicate() bool {
	switch c {
	case ConflictDocumentDuplicate, ConflictIdentityDuplicate, ConflictContentDuplicate:
		return true
	}
	return false
}

// CounterpartKind names the entity a conflict points at.
type CounterpartKind string

const (
	CounterpartParcel      CounterpartKind = "parcel"
	CounterpartApplication CounterpartKind = "application"
	CounterpartDocument    CounterpartKind = "document"
)

// Severity is derived from confidence.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConflictStatus is the resolution state of a conflict record.
type ConflictStatus string

const (
	ConflictUnresolved ConflictStatus = "unresolved"
	ConflictResolved   ConflictStatus = "resolved"
)

// Conflict is a persisted finding that an application may collide with
// existing data. DedupKey is set while the record is unresolved and is unique,
// so a finding can only be open once per counterpart.
type Conflict struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ApplicationID     uint            `gorm:"column:application_id;index;not null" json:"applicationId"`
	ParcelID          *uint           `gorm:"column:parcel_id;index" json:"parcelId,omitempty"`
	CounterpartKind   CounterpartKind `gorm:"column:counterpart_kind;size:16;not null" json:"counterpartKind"`
	CounterpartID     uint            `gorm:"column:counterpart_id;not null" json:"counterpartId"`
	ConflictType      ConflictType    `gorm:"column:conflict_type;index;size:32;not null" json:"conflictType"`
	Title             string          `gorm:"column:title;not null" json:"title"`
	Description       string          `gorm:"column:description;type:text" json:"description"`
	ConfidenceScore   float64         `gorm:"column:confidence_score;not null" json:"confidenceScore"`
	Severity          Severity        `gorm:"column:severity;size:16;not null" json:"severity"`
	OverlapPercentage *float64        `gorm:"column:overlap_percentage" json:"overlapPercentage,omitempty"`
	DetectedByAI      bool            `gorm:"column:detected_by_ai;default:true" json:"detectedByAi"`
	Status            ConflictStatus  `gorm:"column:status;index;size:16;not null;default:unresolved" json:"status"`
	DedupKey          *string         `gorm:"column:dedup_key;uniqueIndex:idx_conflict_dedup_key;size:128" json:"-"`
	ResolvedBy        string          `gorm:"column:resolved_by" json:"resolvedBy,omitempty"`
	ResolutionNotes   string          `gorm:"column:resolution_notes;type:text" json:"resolutionNotes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	ResolvedAt        *time.Time      `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
}

// TableName returns the GORM table name.
func (Conflict) TableName() string { return "conflicts" }

// DedupKeyFor builds the uniqueness key of an open finding.
func DedupKeyFor(applicationID uint, t ConflictType, kind CounterpartKind, counterpartID uint) string {
	return fmt.Sprintf("%d:%s:%s:%d", applicationID, t, kind, counterpartID)
}

// Models lists every registry model for AutoMigrate.
func Models() []any {
	return []any{&Application{}, &Parcel{}, &Document{}, &Conflict{}}
}
