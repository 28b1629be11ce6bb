package geometry

import (
	"fmt"
	"math"

	"github.com/peterstace/simplefeatures/geom"
)

// OverlapResult describes how a boundary intersects the subject parcel.
type OverlapResult struct {
	Intersects       bool
	IntersectionArea float64
	// Ratio is IntersectionArea / area(subject), in [0, 1].
	Ratio float64
}

// Percentage returns Ratio scaled to 0-100.
func (r OverlapResult) Percentage() float64 { return r.Ratio * 100 }

// Overlap measures how much of subject (the registered parcel) is covered by
// other (the incoming application). A subject without area yields a ratio of
// zero. Either boundary failing to parse returns ErrInvalidGeometry.
func Overlap(subject, other Boundary) (OverlapResult, error) {
	gs, err := subject.Geometry()
	if err != nil {
		return OverlapResult{}, fmt.Errorf("subject: %w", err)
	}
	gt, err := other.Geometry()
	if err != nil {
		return OverlapResult{}, fmt.Errorf("other: %w", err)
	}
	return overlap(gs, gt)
}

func overlap(subject, other geom.Geometry) (OverlapResult, error) {
	if !geom.Intersects(subject, other) {
		return OverlapResult{}, nil
	}

	res := OverlapResult{Intersects: true}
	subjectArea := subject.Area()
	if subjectArea <= 0 {
		return res, nil
	}

	inter, err := geom.Intersection(subject, other)
	if err != nil {
		return OverlapResult{}, fmt.Errorf("%w: intersection: %v", ErrInvalidGeometry, err)
	}
	res.IntersectionArea = inter.Area()
	res.Ratio = math.Min(1, res.IntersectionArea/subjectArea)
	return res, nil
}

// OverlapConfidence maps an overlap ratio to a conflict confidence. Any
// intersection carries at least 0.2 and the mapping saturates at 0.95.
func OverlapConfidence(ratio float64) float64 {
	return math.Min(0.95, 0.2+ratio*0.9)
}
