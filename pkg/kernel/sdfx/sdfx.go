// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
//
// SDF solids have no B-rep face identity, so each solid carries its
// primitive metadata and accumulated placement; feature centers and
// directions are computed analytically from those rather than sampled
// from the distance field.
package sdfx

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/pose"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*SdfxKernel)(nil)
var _ kernel.Solid = (*sdfxSolid)(nil)

// defaultMeshCells controls marching cubes tessellation resolution.
const defaultMeshCells = 200

// primKind distinguishes the primitive a solid was built from.
type primKind int

const (
	primBox primKind = iota
	primCylinder
)

// sdfxSolid wraps an sdf.SDF3 together with the primitive metadata and
// accumulated placement needed for analytic feature queries.
type sdfxSolid struct {
	s    sdf.SDF3
	kind primKind
	dims v3.Vec    // box: x,y,z extents; cylinder: X=radius, Z=height
	loc  pose.Pose // rigid placement applied since construction
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// CenterOf returns the feature center in the solid's current frame.
func (s *sdfxSolid) CenterOf(f kernel.FeatureID) (r3.Vec, error) {
	c, _, err := s.feature(f)
	if err != nil {
		return r3.Vec{}, err
	}
	return s.loc.Apply(c), nil
}

// DirectionOf returns the feature direction in the solid's current frame.
func (s *sdfxSolid) DirectionOf(f kernel.FeatureID) (r3.Vec, error) {
	_, d, err := s.feature(f)
	if err != nil {
		return r3.Vec{}, err
	}
	if d == nil {
		return r3.Vec{}, &kernel.UnsupportedFeatureError{
			Feature: f,
			Reason:  "feature has no defined direction",
		}
	}
	return s.loc.ApplyDirection(*d), nil
}

// feature returns the local-frame center and optional direction of f.
// A nil direction means the feature is position-only (center, curved side).
func (s *sdfxSolid) feature(f kernel.FeatureID) (r3.Vec, *r3.Vec, error) {
	if !kernel.ValidFeatureIDs[f] {
		return r3.Vec{}, nil, &kernel.UnsupportedFeatureError{
			Feature: f,
			Reason:  "unknown feature tag",
		}
	}

	switch s.kind {
	case primBox:
		return boxFeature(s.dims, f)
	case primCylinder:
		return cylinderFeature(s.dims.Z, s.dims.X, f)
	}
	return r3.Vec{}, nil, &kernel.UnsupportedFeatureError{
		Feature: f,
		Reason:  "unknown primitive kind",
	}
}

func dir(x, y, z float64) *r3.Vec {
	return &r3.Vec{X: x, Y: y, Z: z}
}

// boxFeature computes features of a box with min corner at the origin.
// Face conventions: top/bottom perpendicular to Y, left/right to X,
// front/back to Z, matching kernel.FeatureID documentation.
func boxFeature(d v3.Vec, f kernel.FeatureID) (r3.Vec, *r3.Vec, error) {
	x, y, z := d.X, d.Y, d.Z
	switch f {
	case kernel.FeatureCenter:
		return r3.Vec{X: x / 2, Y: y / 2, Z: z / 2}, nil, nil
	case kernel.FaceTop:
		return r3.Vec{X: x / 2, Y: y, Z: z / 2}, dir(0, 1, 0), nil
	case kernel.FaceBottom:
		return r3.Vec{X: x / 2, Y: 0, Z: z / 2}, dir(0, -1, 0), nil
	case kernel.FaceLeft:
		return r3.Vec{X: 0, Y: y / 2, Z: z / 2}, dir(-1, 0, 0), nil
	case kernel.FaceRight:
		return r3.Vec{X: x, Y: y / 2, Z: z / 2}, dir(1, 0, 0), nil
	case kernel.FaceFront:
		return r3.Vec{X: x / 2, Y: y / 2, Z: z}, dir(0, 0, 1), nil
	case kernel.FaceBack:
		return r3.Vec{X: x / 2, Y: y / 2, Z: 0}, dir(0, 0, -1), nil
	case kernel.EdgeFront:
		// Straight bottom-front edge; direction is the midpoint tangent.
		return r3.Vec{X: x / 2, Y: 0, Z: z}, dir(1, 0, 0), nil
	}
	return r3.Vec{}, nil, &kernel.UnsupportedFeatureError{
		Feature: f,
		Reason:  "box has no such feature",
	}
}

// cylinderFeature computes features of a cylinder centered at the origin
// with its axis along Z.
func cylinderFeature(h, r float64, f kernel.FeatureID) (r3.Vec, *r3.Vec, error) {
	switch f {
	case kernel.FeatureCenter:
		return r3.Vec{}, nil, nil
	case kernel.FaceTop:
		return r3.Vec{Z: h / 2}, dir(0, 0, 1), nil
	case kernel.FaceBottom:
		return r3.Vec{Z: -h / 2}, dir(0, 0, -1), nil
	case kernel.FaceSide:
		// Curved face: center is defined, normal is not.
		return r3.Vec{}, nil, nil
	case kernel.RimTop:
		// Circular edge; direction is the cylinder axis.
		return r3.Vec{Z: h / 2}, dir(0, 0, 1), nil
	case kernel.RimBottom:
		return r3.Vec{Z: -h / 2}, dir(0, 0, 1), nil
	}
	return r3.Vec{}, nil, &kernel.UnsupportedFeatureError{
		Feature: f,
		Reason:  "cylinder has no such feature",
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// unwrap extracts the underlying metadata solid from a kernel.Solid.
func unwrap(s kernel.Solid) *sdfxSolid {
	return s.(*sdfxSolid)
}

// Box creates a box with the given dimensions. The resulting solid has its
// minimum corner at the origin (0,0,0) so that placement translations work
// intuitively. sdf.Box3D centers the box at the origin, so we translate by
// half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	// Shift from center-origin to min-corner-origin.
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return &sdfxSolid{
		s:    sdf.Transform3D(s, m),
		kind: primBox,
		dims: v3.Vec{X: x, Y: y, Z: z},
		loc:  pose.Identity(),
	}
}

// Cylinder creates a cylinder with the given height and radius, centered at
// the origin with its axis along Z. The segments parameter is ignored since
// SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return &sdfxSolid{
		s:    s,
		kind: primCylinder,
		dims: v3.Vec{X: radius, Z: height},
		loc:  pose.Identity(),
	}
}

// ApplyPose returns the solid rigidly transformed by p. Feature queries on
// the returned solid answer in the transformed frame.
func (k *SdfxKernel) ApplyPose(s kernel.Solid, p pose.Pose) kernel.Solid {
	src := unwrap(s)

	// Decompose the rotation into axis-angle for sdfx.
	v := p.ToVector()
	w := v3.Vec{X: v[3], Y: v[4], Z: v[5]}
	angle := w.Length()

	m := sdf.Translate3d(v3.Vec{X: p.T.X, Y: p.T.Y, Z: p.T.Z})
	if angle != 0 {
		m = m.Mul(sdf.Rotate3d(w.DivScalar(angle), angle))
	}

	return &sdfxSolid{
		s:    sdf.Transform3D(src.s, m),
		kind: src.kind,
		dims: src.dims,
		loc:  pose.Compose(p, src.loc),
	}
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s).s

	renderer := render.NewMarchingCubesUniform(defaultMeshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// ToSTL writes a solid to an STL file using marching cubes.
func (k *SdfxKernel) ToSTL(s kernel.Solid, path string) error {
	sdf3 := unwrap(s).s
	render.ToSTL(sdf3, path, render.NewMarchingCubesUniform(defaultMeshCells))
	return nil
}
