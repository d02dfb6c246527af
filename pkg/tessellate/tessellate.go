// Package tessellate walks a solved assembly and produces triangle meshes
// using a geometry kernel. One mesh is produced per solid-bearing node.
package tessellate

import (
	"fmt"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/kernel"
)

// Tessellate walks the assembly tree and produces one triangle mesh per
// node that carries a solid, placed at the node's world pose. Each node's
// world pose is computed by ancestor composition; no mutable transform
// state is carried across the walk. The tessellator is read-only and never
// mutates the assembly.
func Tessellate(a *assembly.Assembly, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if a == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	if err := walkNode(a.Root(), k, &meshes); err != nil {
		return nil, err
	}
	return meshes, nil
}

// walkNode recursively traverses a node and its children, collecting meshes.
func walkNode(n *assembly.Node, k kernel.Kernel, meshes *[]*kernel.Mesh) error {
	if s := n.Solid(); s != nil {
		placed := k.ApplyPose(s, n.WorldPose())
		mesh, err := k.ToMesh(placed)
		if err != nil {
			return fmt.Errorf("tessellate: ToMesh failed for node %q: %w", n.Path(), err)
		}
		mesh.PartName = n.Path()
		*meshes = append(*meshes, mesh)
	}

	for _, child := range n.Children() {
		if err := walkNode(child, k, meshes); err != nil {
			return err
		}
	}
	return nil
}

// WriteSTL places every solid-bearing node at its world pose and writes the
// lot to a single STL file at path.
func WriteSTL(a *assembly.Assembly, k kernel.Kernel, path string) error {
	if a == nil {
		return fmt.Errorf("tessellate: nil assembly")
	}
	var nodes []*assembly.Node
	collectSolids(a.Root(), &nodes)
	if len(nodes) == 0 {
		return fmt.Errorf("tessellate: assembly has no solids")
	}

	// ToSTL accepts one solid at a time, so nodes get numbered suffixes
	// when there is more than one.
	if len(nodes) == 1 {
		n := nodes[0]
		return k.ToSTL(k.ApplyPose(n.Solid(), n.WorldPose()), path)
	}
	for i, n := range nodes {
		placed := k.ApplyPose(n.Solid(), n.WorldPose())
		p := numberedPath(path, i)
		if err := k.ToSTL(placed, p); err != nil {
			return fmt.Errorf("tessellate: STL export for node %q: %w", n.Path(), err)
		}
	}
	return nil
}

func collectSolids(n *assembly.Node, out *[]*assembly.Node) {
	if n.Solid() != nil {
		*out = append(*out, n)
	}
	for _, child := range n.Children() {
		collectSolids(child, out)
	}
}

// numberedPath turns "out.stl" into "out_3.stl".
func numberedPath(path string, i int) string {
	for j := len(path) - 1; j >= 0; j-- {
		if path[j] == '.' {
			return fmt.Sprintf("%s_%d%s", path[:j], i, path[j:])
		}
		if path[j] == '/' {
			break
		}
	}
	return fmt.Sprintf("%s_%d", path, i)
}
