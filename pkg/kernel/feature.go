package kernel

import "fmt"

// FeatureID names a sub-feature of a solid that constraints can reference.
// The set is closed: each primitive kind supports a subset of these tags.
type FeatureID string

const (
	// FeatureCenter is the whole-solid center (bounding box center).
	// It has a position but no direction.
	FeatureCenter FeatureID = "center"

	// Box faces. Thickness conventions follow the primitive axes:
	// top/bottom are perpendicular to Y, left/right to X, front/back to Z.
	// Cylinders reuse top/bottom for their planar end caps (axis Z).
	FaceTop    FeatureID = "top"
	FaceBottom FeatureID = "bottom"
	FaceLeft   FeatureID = "left"
	FaceRight  FeatureID = "right"
	FaceFront  FeatureID = "front"
	FaceBack   FeatureID = "back"

	// FaceSide is the curved lateral face of a cylinder. It has a center
	// but no well-defined normal.
	FaceSide FeatureID = "side"

	// RimTop and RimBottom are the circular edges of a cylinder's end
	// caps; their direction is the cylinder axis.
	RimTop    FeatureID = "rim-top"
	RimBottom FeatureID = "rim-bottom"

	// EdgeFront is the straight bottom-front edge of a box; its direction
	// is the tangent at its midpoint.
	EdgeFront FeatureID = "edge-front"
)

// ValidFeatureIDs is the set of recognized feature tags.
var ValidFeatureIDs = map[FeatureID]bool{
	FeatureCenter: true,
	FaceTop:       true,
	FaceBottom:    true,
	FaceLeft:      true,
	FaceRight:     true,
	FaceFront:     true,
	FaceBack:      true,
	FaceSide:      true,
	RimTop:        true,
	RimBottom:     true,
	EdgeFront:     true,
}

// UnsupportedFeatureError reports a feature query that the solid cannot
// answer: an unknown tag, a tag the primitive kind does not have, or a
// direction query on a feature with no defined direction.
type UnsupportedFeatureError struct {
	Feature FeatureID
	Reason  string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature %q: %s", e.Feature, e.Reason)
}
