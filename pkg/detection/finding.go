// Package detection decides whether a land application collides with the
// registry. Independent detectors produce findings; the Engine persists them
// as conflict records and keeps the application's scores and status in step.
package detection

import (
	"math"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// Contract constants.
const (
	OwnerDuplicateConfidence    = 0.6
	LocationMatchConfidence     = 0.4
	MinPersistConfidence        = 0.15
	DocumentSimilarityThreshold = 0.8
	IdentityDuplicateConfidence = 0.95
	HashDuplicateConfidence     = 1.0
	HighSeverityConfidence      = 0.7

	// Content duplicate weights, applied once per identifier kind that the
	// two applications share.
	ContentNRCWeight    = 0.4
	ContentTPINWeight   = 0.4
	ContentEmailWeight  = 0.2
	ContentPhoneWeight  = 0.1
	ContentDuplicateMin = 0.4
)

// scoreEpsilon absorbs binary floating point error at thresholds, so that
// 0.2 + (5/9)*0.9 counts as 0.7.
const scoreEpsilon = 1e-9

// atLeast reports v >= threshold within scoreEpsilon.
func atLeast(v, threshold float64) bool {
	return v >= threshold-scoreEpsilon
}

// SeverityFor maps a confidence to a severity.
func SeverityFor(confidence float64) registry.Severity {
	if atLeast(confidence, HighSeverityConfidence) {
		return registry.SeverityHigh
	}
	return registry.SeverityMedium
}

// Finding is one detector result before persistence.
type Finding struct {
	Type            registry.ConflictType
	CounterpartKind registry.CounterpartKind
	CounterpartID   uint
	// ParcelID links the registered parcel involved, when there is one.
	ParcelID    *uint
	Confidence  float64
	Severity    registry.Severity
	Title       string
	Description string
	// OverlapPercentage is set for spatial overlaps.
	OverlapPercentage *float64
}

// DedupKey is the key the finding is stored under while unresolved.
func (f Finding) DedupKey(applicationID uint) string {
	return registry.DedupKeyFor(applicationID, f.Type, f.CounterpartKind, f.CounterpartID)
}

func (f Finding) conflict(applicationID uint) *registry.Conflict {
	key := f.DedupKey(applicationID)
	return &registry.Conflict{
		ApplicationID:     applicationID,
		ParcelID:          f.ParcelID,
		CounterpartKind:   f.CounterpartKind,
		CounterpartID:     f.CounterpartID,
		ConflictType:      f.Type,
		Title:             f.Title,
		Description:       f.Description,
		ConfidenceScore:   math.Max(0, math.Min(1, f.Confidence)),
		Severity:          f.Severity,
		OverlapPercentage: f.OverlapPercentage,
		DetectedByAI:      true,
		Status:            registry.ConflictUnresolved,
		DedupKey:          &key,
	}
}

func uintPtr(v uint) *uint { return &v }

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
