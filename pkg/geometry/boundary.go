// Package geometry holds land boundaries exchanged as GeoJSON polygons in
// WGS84 (SRID 4326) and computes how much of a registered parcel a new
// boundary overlaps.
package geometry

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// SRID is the spatial reference of every stored boundary.
const SRID = 4326

// ErrInvalidGeometry is returned when a boundary cannot be parsed or is not
// a valid polygon. Callers treat it as "no geometry available".
var ErrInvalidGeometry = errors.New("invalid geometry")

// Boundary is a nullable polygon stored as GeoJSON text. The zero value
// means no boundary was supplied.
type Boundary struct {
	raw []byte
}

// NewPolygon builds a single-ring polygon from [longitude, latitude] pairs.
// The ring is closed automatically.
func NewPolygon(ring [][2]float64) Boundary {
	coords := make([][2]float64, 0, len(ring)+1)
	coords = append(coords, ring...)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		coords = append(coords, ring[0])
	}
	doc := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{Type: "Polygon", Coordinates: [][][2]float64{coords}}
	raw, _ := json.Marshal(doc)
	return Boundary{raw: raw}
}

// ParseBoundary accepts a GeoJSON Polygon or MultiPolygon and rejects
// anything that does not parse.
func ParseBoundary(data []byte) (Boundary, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Boundary{}, nil
	}
	b := Boundary{raw: append([]byte(nil), data...)}
	if _, err := b.Geometry(); err != nil {
		return Boundary{}, err
	}
	return b, nil
}

// IsZero reports whether no boundary is set.
func (b Boundary) IsZero() bool { return len(b.raw) == 0 }

// GeoJSON returns the stored document.
func (b Boundary) GeoJSON() []byte { return b.raw }

// Geometry parses the boundary. Degenerate polygons with zero area are
// returned as-is so that overlap ratios can be defined as zero for them.
func (b Boundary) Geometry() (geom.Geometry, error) {
	if b.IsZero() {
		return geom.Geometry{}, fmt.Errorf("%w: empty boundary", ErrInvalidGeometry)
	}
	g, err := geom.UnmarshalGeoJSON(b.raw)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	switch g.Type() {
	case geom.TypePolygon, geom.TypeMultiPolygon:
	default:
		return geom.Geometry{}, fmt.Errorf("%w: expected polygon, got %s", ErrInvalidGeometry, g.Type())
	}
	if g.IsEmpty() {
		return geom.Geometry{}, fmt.Errorf("%w: polygon has no coordinates", ErrInvalidGeometry)
	}
	if g.Area() > 0 {
		if err := g.Validate(); err != nil {
			return geom.Geometry{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
	}
	return g, nil
}

// MarshalJSON emits the GeoJSON document or null.
func (b Boundary) MarshalJSON() ([]byte, error) {
	if b.IsZero() {
		return []byte("null"), nil
	}
	return b.raw, nil
}

// UnmarshalJSON keeps the document verbatim. Invalid geometry is stored and
// surfaces later through Geometry.
func (b *Boundary) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		b.raw = nil
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: boundary is not JSON", ErrInvalidGeometry)
	}
	b.raw = append([]byte(nil), data...)
	return nil
}

// Scan implements sql.Scanner.
func (b *Boundary) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		b.raw = nil
	case []byte:
		b.raw = append([]byte(nil), v...)
	case string:
		b.raw = []byte(v)
	default:
		return fmt.Errorf("unsupported boundary column type %T", value)
	}
	if len(b.raw) == 0 {
		b.raw = nil
	}
	return nil
}

// Value implements driver.Valuer. An unset boundary is stored as NULL.
func (b Boundary) Value() (driver.Value, error) {
	if b.IsZero() {
		return nil, nil
	}
	return string(b.raw), nil
}

// GormDataType tells GORM to use a text column.
func (Boundary) GormDataType() string { return "text" }
