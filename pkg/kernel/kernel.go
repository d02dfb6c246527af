// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx) provide solid construction, feature queries and
// mesh output behind this interface. The constraint solver consumes only
// the feature queries (CenterOf, DirectionOf) and final placement
// (ApplyPose); it never needs to know how solids are represented.
package kernel

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/mortise/pkg/pose"
)

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)

	// CenterOf returns the center point of the given feature in the
	// solid's local frame.
	CenterOf(f FeatureID) (r3.Vec, error)

	// DirectionOf returns the unit direction of the given feature in the
	// solid's local frame: the outward normal for a planar face, the axis
	// for a circular edge, the tangent at the midpoint for any other edge.
	// Features with no well-defined direction return an
	// UnsupportedFeatureError.
	DirectionOf(f FeatureID) (r3.Vec, error)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid

	// ApplyPose returns the solid rigidly transformed by p. Used only at
	// commit time to produce placed geometry for downstream consumption;
	// the solver works on feature coordinates directly.
	ApplyPose(s Solid, p pose.Pose) Solid

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
	ToSTL(s Solid, path string) error
}
