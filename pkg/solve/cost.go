// Package solve turns an assembly's constraint set into a differentiable
// scalar objective over the free nodes' pose parameters and minimizes it,
// writing the resulting poses back into the graph.
package solve

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/pose"
)

// DefaultDirWeight scales angular residuals (radians) against positional
// residuals (model units, typically mm) in mixed objectives. The value is a
// tunable balance, not a correctness requirement; see Options.DirWeight.
const DefaultDirWeight = 100.0

// body is one side of a constraint term: the feature geometry in the node's
// local frame, plus either an index into the free-node list or the node's
// fixed world pose.
type body struct {
	free   int       // index into the free-node ordering, or -1
	fixed  pose.Pose // world pose when free == -1
	point  r3.Vec    // feature center, local frame
	dir    r3.Vec    // feature direction, local frame (unit); valid if hasDir
	hasDir bool
}

// worldPose returns the body's world pose given the current free poses.
func (b body) worldPose(free []pose.Pose) pose.Pose {
	if b.free < 0 {
		return b.fixed
	}
	return free[b.free]
}

// term is a single resolved constraint cost. Terms are pure functions of
// the two bodies' world poses, which keeps the total objective
// differentiable with respect to the free parameters.
type term struct {
	kind  assembly.Kind
	param float64
	a, b  body
}

// eval computes the term's cost under the given free poses.
func (t term) eval(free []pose.Pose, dirWeight float64) float64 {
	pa := t.a.worldPose(free)
	pb := t.b.worldPose(free)

	switch t.kind {
	case assembly.Point:
		return pointCost(pa.Apply(t.a.point), pb.Apply(t.b.point), t.param)
	case assembly.Axis:
		return axisCost(pa.ApplyDirection(t.a.dir), pb.ApplyDirection(t.b.dir), t.param, dirWeight)
	case assembly.Plane:
		return pointCost(pa.Apply(t.a.point), pb.Apply(t.b.point), t.param) +
			axisCost(pa.ApplyDirection(t.a.dir), pb.ApplyDirection(t.b.dir), t.param, dirWeight)
	case assembly.PointInPlane:
		return pointInPlaneCost(pa.Apply(t.a.point), pb.Apply(t.b.point), pb.ApplyDirection(t.b.dir), t.param)
	}
	return 0
}

// pointCost is (param - |c1-c2|)^2.
func pointCost(c1, c2 r3.Vec, param float64) float64 {
	r := param - r3.Norm(r3.Sub(c1, c2))
	return r * r
}

// axisCost is w * (param - angle(d1,d2))^2.
func axisCost(d1, d2 r3.Vec, param, weight float64) float64 {
	r := param - angleBetween(d1, d2)
	return weight * r * r
}

// pointInPlaneCost is the squared perpendicular distance from c1 to the
// plane through c2+param*n2 with unit normal n2.
func pointInPlaneCost(c1, c2, n2 r3.Vec, param float64) float64 {
	d := r3.Dot(r3.Sub(c1, r3.Add(c2, r3.Scale(param, n2))), n2)
	return d * d
}

// angleBetween returns the opening angle between two vectors in [0, π].
func angleBetween(d1, d2 r3.Vec) float64 {
	c := r3.Cos(d1, d2)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}
