package assembly

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Kind enumerates the constraint variants. The set is closed: each kind has
// exactly one cost formula in the solver.
type Kind int

const (
	// Point drives the distance between the two feature centers toward
	// the parameter (default 0: coincident centers).
	Point Kind = iota
	// Axis drives the angle between the two feature directions toward
	// the parameter (default π: opposing directions, mating faces).
	Axis
	// Plane combines Point and Axis between the same two references.
	Plane
	// PointInPlane drives the first feature's center onto the plane
	// defined by the second feature's center and normal, offset along
	// the normal by the parameter.
	PointInPlane
)

func (k Kind) String() string {
	switch k {
	case Point:
		return "point"
	case Axis:
		return "axis"
	case Plane:
		return "plane"
	case PointInPlane:
		return "point-in-plane"
	default:
		return "unknown"
	}
}

// KindFromString parses a constraint kind name as used by the DSL and CLI.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "point":
		return Point, nil
	case "axis":
		return Axis, nil
	case "plane":
		return Plane, nil
	case "point-in-plane", "point_in_plane":
		return PointInPlane, nil
	}
	return 0, fmt.Errorf("unknown constraint kind %q", s)
}

// DefaultParam returns the kind's default numeric parameter.
func (k Kind) DefaultParam() float64 {
	switch k {
	case Axis, Plane:
		return math.Pi
	default:
		return 0
	}
}

// NeedsDirection reports whether the kind's cost reads feature directions,
// and therefore whether direction extraction must succeed for its refs
// during validation. PointInPlane only needs the second ref's direction.
func (k Kind) NeedsDirection() bool {
	return k != Point
}

// Ref is a feature reference in "path@feature" form, where feature is
// either a kernel feature tag or a named anchor on the node. A bare path
// refers to the node's center feature.
type Ref struct {
	Path    string
	Feature string
}

// ParseRef splits a textual feature reference.
func ParseRef(s string) Ref {
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		return Ref{Path: s[:i], Feature: s[i+1:]}
	}
	return Ref{Path: s, Feature: "center"}
}

func (r Ref) String() string {
	return r.Path + "@" + r.Feature
}

// Constraint is a declared relationship between two feature references.
// Immutable once created. Seq is the stable creation order used for
// deterministic cost summation and parameter layout.
type Constraint struct {
	ID    uuid.UUID
	Kind  Kind
	A, B  Ref
	Param float64
	Seq   int
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s(%s, %s, param=%g)", c.Kind, c.A, c.B, c.Param)
}
