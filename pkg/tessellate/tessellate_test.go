package tessellate_test

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/kernel/sdfx"
	"github.com/chazu/mortise/pkg/pose"
	"github.com/chazu/mortise/pkg/tessellate"
)

// newKernel returns a fresh sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New()
}

func TestSingleBox(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	if _, err := a.Add("", "base", k.Box(100, 50, 25), pose.Identity()); err != nil {
		t.Fatalf("add: %v", err)
	}

	meshes, err := tessellate.Tessellate(a, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	if meshes[0].IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if meshes[0].PartName != "base" {
		t.Errorf("mesh part name = %q, expected %q", meshes[0].PartName, "base")
	}
}

func TestEmptyAssembly(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")

	meshes, err := tessellate.Tessellate(a, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(meshes))
	}
}

func TestNilAssembly(t *testing.T) {
	meshes, err := tessellate.Tessellate(nil, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if meshes != nil {
		t.Errorf("expected nil meshes, got %d", len(meshes))
	}
}

func TestShapelessNodesProduceNoMesh(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	if _, err := a.Add("", "frame", nil, pose.Identity()); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if _, err := a.Add("frame", "leg", k.Box(40, 40, 700), pose.Identity()); err != nil {
		t.Fatalf("add leg: %v", err)
	}

	meshes, err := tessellate.Tessellate(a, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh (group contributes none), got %d", len(meshes))
	}
	if meshes[0].PartName != "frame/leg" {
		t.Errorf("mesh part name = %q, expected %q", meshes[0].PartName, "frame/leg")
	}
}

func TestWorldPosePlacement(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	if _, err := a.Add("", "frame", nil, pose.Translation(r3.Vec{X: 100})); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if _, err := a.Add("frame", "box", k.Box(10, 10, 10), pose.Translation(r3.Vec{Y: 50})); err != nil {
		t.Fatalf("add box: %v", err)
	}

	meshes, err := tessellate.Tessellate(a, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}

	// All vertices should sit inside the composed placement's bounds:
	// x in [100,110], y in [50,60], z in [0,10], give or take sampling
	// error from the marching cubes surface.
	const slack = 1.5
	m := meshes[0]
	for i := 0; i < len(m.Vertices); i += 3 {
		x := float64(m.Vertices[i])
		y := float64(m.Vertices[i+1])
		z := float64(m.Vertices[i+2])
		if x < 100-slack || x > 110+slack {
			t.Fatalf("vertex %d x = %f out of bounds", i/3, x)
		}
		if y < 50-slack || y > 60+slack {
			t.Fatalf("vertex %d y = %f out of bounds", i/3, y)
		}
		if z < 0-slack || z > 10+slack {
			t.Fatalf("vertex %d z = %f out of bounds", i/3, z)
		}
	}
}

func TestMeshOrderIsDepthFirst(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	if _, err := a.Add("", "first", k.Box(1, 1, 1), pose.Identity()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := a.Add("first", "nested", k.Box(1, 1, 1), pose.Translation(r3.Vec{X: 5})); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := a.Add("", "second", k.Box(1, 1, 1), pose.Translation(r3.Vec{X: 10})); err != nil {
		t.Fatalf("add: %v", err)
	}

	meshes, err := tessellate.Tessellate(a, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 3 {
		t.Fatalf("expected 3 meshes, got %d", len(meshes))
	}
	want := []string{"first", "first/nested", "second"}
	for i, m := range meshes {
		if m.PartName != want[i] {
			t.Errorf("mesh %d part name = %q, expected %q", i, m.PartName, want[i])
		}
	}
}

func TestRotatedPlacement(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	// Quarter turn about Z: the box's X extent lands along Y.
	p := pose.FromAxisAngle(r3.Vec{Z: 1}, math.Pi/2)
	if _, err := a.Add("", "turned", k.Box(100, 10, 10), p); err != nil {
		t.Fatalf("add: %v", err)
	}

	meshes, err := tessellate.Tessellate(a, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}

	var maxY float64
	m := meshes[0]
	for i := 0; i < len(m.Vertices); i += 3 {
		if y := float64(m.Vertices[i+1]); y > maxY {
			maxY = y
		}
	}
	if maxY < 90 {
		t.Errorf("max Y = %f, expected the 100-long extent along Y", maxY)
	}
}

func TestWriteSTL(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	if _, err := a.Add("", "base", k.Box(10, 10, 10), pose.Identity()); err != nil {
		t.Fatalf("add: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.stl")
	if err := tessellate.WriteSTL(a, k, path); err != nil {
		t.Fatalf("WriteSTL failed: %v", err)
	}
}

func TestWriteSTLEmptyAssembly(t *testing.T) {
	k := newKernel()
	a := assembly.New("rig")
	path := filepath.Join(t.TempDir(), "out.stl")
	if err := tessellate.WriteSTL(a, k, path); err == nil {
		t.Fatal("expected error for assembly with no solids")
	}
}
