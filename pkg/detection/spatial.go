package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/geometry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/identifiers"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// SpatialDetector compares an application against registered parcels by
// owner NRC, location text and boundary overlap. Each parcel yields at most
// one finding, for its most confident reason.
type SpatialDetector struct {
	Store *registry.Store
}

func (d *SpatialDetector) Name() string { return "spatial" }

type parcelCandidate struct {
	parcel     registry.Parcel
	reason     registry.ConflictType
	confidence float64
	overlap    *geometry.OverlapResult
}

func (d *SpatialDetector) Detect(ctx context.Context, run *Run) ([]Finding, error) {
	app := run.App
	var order []uint
	best := make(map[uint]*parcelCandidate)

	consider := func(c parcelCandidate) {
		if c.parcel.ApplicationID != nil && *c.parcel.ApplicationID == app.ID {
			return
		}
		prev, ok := best[c.parcel.ID]
		if !ok {
			order = append(order, c.parcel.ID)
		}
		if !ok || c.confidence > prev.confidence {
			best[c.parcel.ID] = &c
		}
	}

	if nrc := identifiers.Normalize(identifiers.KindNRC, app.NRC); nrc != "" {
		parcels, err := d.Store.ParcelsByOwnerNRC(ctx, app.NRC)
		if err != nil {
			return nil, err
		}
		for _, p := range parcels {
			if identifiers.Normalize(identifiers.KindNRC, p.OwnerNRC) != nrc {
				continue
			}
			consider(parcelCandidate{parcel: p, reason: registry.ConflictOwnerDuplicate, confidence: OwnerDuplicateConfidence})
		}
	}

	if loc := strings.TrimSpace(app.Location); loc != "" {
		parcels, err := d.Store.ParcelsByLocation(ctx, loc)
		if err != nil {
			return nil, err
		}
		for _, p := range parcels {
			consider(parcelCandidate{parcel: p, reason: registry.ConflictLocationMatch, confidence: LocationMatchConfidence})
		}
	}

	if err := d.overlaps(ctx, run, consider); err != nil {
		return nil, err
	}

	var findings []Finding
	for _, id := range order {
		c := best[id]
		if c.confidence < MinPersistConfidence {
			continue
		}
		findings = append(findings, d.finding(app, c))
	}
	return findings, nil
}

func (d *SpatialDetector) overlaps(ctx context.Context, run *Run, consider func(parcelCandidate)) error {
	app := run.App
	if app.Boundary.IsZero() {
		return nil
	}
	if _, err := app.Boundary.Geometry(); err != nil {
		run.Skip(d.Name(), "application boundary unusable", "error", err)
		return nil
	}

	parcels, err := d.Store.ParcelsWithBoundary(ctx)
	if err != nil {
		return err
	}
	for _, p := range parcels {
		res, err := geometry.Overlap(p.Boundary, app.Boundary)
		if errors.Is(err, geometry.ErrInvalidGeometry) {
			run.Skip(d.Name(), "parcel boundary unusable", "parcelID", p.ID, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("overlap parcel %d: %w", p.ID, err)
		}
		if !res.Intersects {
			continue
		}
		consider(parcelCandidate{
			parcel:     p,
			reason:     registry.ConflictSpatialOverlap,
			confidence: geometry.OverlapConfidence(res.Ratio),
			overlap:    &res,
		})
	}
	return nil
}

func (d *SpatialDetector) finding(app *registry.Application, c *parcelCandidate) Finding {
	f := Finding{
		Type:            c.reason,
		CounterpartKind: registry.CounterpartParcel,
		CounterpartID:   c.parcel.ID,
		ParcelID:        uintPtr(c.parcel.ID),
		Confidence:      c.confidence,
		Severity:        SeverityFor(c.confidence),
		Title:           fmt.Sprintf("%s: %s", reasonTitle(c.reason), c.parcel.ParcelNumber),
	}
	if c.overlap != nil {
		pct := c.overlap.Percentage()
		f.OverlapPercentage = &pct
	}
	f.Description = spatialDescription(app, c)
	return f
}

func reasonTitle(t registry.ConflictType) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func spatialDescription(app *registry.Application, c *parcelCandidate) string {
	p := c.parcel
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	switch c.reason {
	case registry.ConflictSpatialOverlap:
		line("GEOGRAPHIC OVERLAP DETECTED")
		line("The boundaries of this application physically overlap with an existing registered parcel.")
		line("")
		line("Conflicting Parcel: %s", p.ParcelNumber)
		line("Current Owner: %s", orUnknown(p.OwnerName))
		line("Owner Phone: %s", orNA(p.OwnerPhone))
		line("Owner Email: %s", orNA(p.OwnerEmail))
		if c.overlap != nil && c.overlap.Ratio > 0 {
			line("Overlap Percentage: %.2f%% of the existing parcel", c.overlap.Percentage())
		}
		line("Parcel Size: %g hectares", p.Size)
		line("Parcel Location: %s", orNA(p.Location))
		line("")
		line("Required actions:")
		line("1. Verify your land boundaries are correct")
		line("2. Check if you have proof of ownership for this specific area")
		line("3. Contact %s if this is a known boundary adjustment", ownerOr(p.OwnerName, "the registered owner"))
		line("4. Provide updated survey documents showing correct boundaries")
	case registry.ConflictOwnerDuplicate:
		line("DUPLICATE OWNER NRC DETECTED")
		line("The same National Registration Card number is already associated with another parcel.")
		line("")
		line("Existing Parcel: %s", p.ParcelNumber)
		line("Owner Name on Record: %s", orUnknown(p.OwnerName))
		line("NRC Number: %s", app.NRC)
		line("Existing Parcel Location: %s", orNA(p.Location))
		line("Existing Parcel Size: %g hectares", p.Size)
		line("")
		line("Required actions:")
		line("1. Confirm this is a new parcel and not an update to parcel %s", p.ParcelNumber)
		line("2. If updating the existing parcel, contact the registry office")
		line("3. Provide proof this is a separate land acquisition")
	case registry.ConflictLocationMatch:
		line("SIMILAR LOCATION DETECTED")
		line("The application location matches an existing parcel location.")
		line("")
		line("Your Location: %s", app.Location)
		line("Existing Parcel: %s", p.ParcelNumber)
		line("Existing Location: %s", orNA(p.Location))
		line("Current Owner: %s", orUnknown(p.OwnerName))
		line("Parcel Size: %g hectares", p.Size)
		line("")
		line("Required actions:")
		line("1. Verify your location description is accurate and specific")
		line("2. Provide details that distinguish your parcel, such as a plot number")
		line("3. Confirm you are not registering the same land as parcel %s", p.ParcelNumber)
	}
	return strings.TrimRight(b.String(), "\n")
}

func ownerOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
