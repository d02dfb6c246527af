package solve

import (
	"fmt"
	"sort"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/pose"
)

// problem is the flattened optimization problem: the free-node ordering,
// the initial parameter vector, and the resolved cost terms.
//
// Free nodes are exactly the non-root nodes referenced by at least one
// constraint, in order of first appearance over constraints sorted by
// creation sequence. The ordering is therefore a pure function of the
// constraint set, as required for deterministic solves. The free variable
// for each node is its world pose; commit converts back to local poses.
type problem struct {
	asm   *assembly.Assembly
	free  []*assembly.Node
	index map[*assembly.Node]int
	terms []term
	x0    []float64
}

// buildProblem validates every constraint against the graph and resolves it
// into a cost term. All structural errors (NotFound, unsupported features,
// shapeless nodes) surface here, before any pose is mutated.
func buildProblem(a *assembly.Assembly) (*problem, error) {
	cs := a.Constraints()
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Seq < cs[j].Seq })

	p := &problem{
		asm:   a,
		index: make(map[*assembly.Node]int),
	}

	for _, c := range cs {
		ba, err := p.resolveBody(c, c.A, c.Kind.NeedsDirection() && c.Kind != assembly.PointInPlane)
		if err != nil {
			return nil, err
		}
		bb, err := p.resolveBody(c, c.B, c.Kind.NeedsDirection())
		if err != nil {
			return nil, err
		}
		p.terms = append(p.terms, term{kind: c.Kind, param: c.Param, a: ba, b: bb})
	}

	p.x0 = make([]float64, 0, len(p.free)*pose.VectorLen)
	for _, n := range p.free {
		p.x0 = append(p.x0, n.WorldPose().ToVector()...)
	}
	return p, nil
}

// resolveBody resolves one side of a constraint to its local feature
// geometry and registers the node as free if it is not the root.
func (p *problem) resolveBody(c *assembly.Constraint, r assembly.Ref, needDir bool) (body, error) {
	n, f, err := p.asm.ResolveRef(r)
	if err != nil {
		return body{}, fmt.Errorf("constraint %s: %w", c, err)
	}
	s := n.Solid()
	if s == nil {
		return body{}, fmt.Errorf("constraint %s: %w", c, &kernel.UnsupportedFeatureError{
			Feature: f,
			Reason:  "node " + r.Path + " has no shape",
		})
	}

	b := body{free: -1}
	b.point, err = s.CenterOf(f)
	if err != nil {
		return body{}, fmt.Errorf("constraint %s: %w", c, err)
	}
	if needDir {
		b.dir, err = s.DirectionOf(f)
		if err != nil {
			return body{}, fmt.Errorf("constraint %s: %w", c, err)
		}
		b.hasDir = true
	}

	if n.IsRoot() {
		b.fixed = pose.Identity()
		return b, nil
	}
	idx, ok := p.index[n]
	if !ok {
		idx = len(p.free)
		p.free = append(p.free, n)
		p.index[n] = idx
	}
	b.free = idx
	return b, nil
}

// poses reconstructs the free nodes' world poses from a parameter vector.
func (p *problem) poses(x []float64) []pose.Pose {
	out := make([]pose.Pose, len(p.free))
	for i := range p.free {
		out[i] = pose.FromVector(x[i*pose.VectorLen : (i+1)*pose.VectorLen])
	}
	return out
}

// cost is the total objective: the sum of every term in creation order.
func (p *problem) cost(x []float64, dirWeight float64) float64 {
	free := p.poses(x)
	var sum float64
	for _, t := range p.terms {
		sum += t.eval(free, dirWeight)
	}
	return sum
}

// commit writes the optimized world poses back as local poses, walking the
// tree top-down so a free child under a free parent lands at its solved
// world placement. Nodes never referenced by a constraint keep their
// declared poses.
func (p *problem) commit(x []float64) {
	target := p.poses(x)
	p.place(p.asm.Root(), pose.Identity(), target)
}

// place recursively assigns poses: world tracks each node's (possibly
// updated) world pose during the walk.
func (p *problem) place(n *assembly.Node, parentWorld pose.Pose, target []pose.Pose) {
	var world pose.Pose
	if idx, ok := p.index[n]; ok {
		world = target[idx]
		p.asm.SetLocalPose(n, pose.Compose(pose.Inverse(parentWorld), world))
	} else {
		world = pose.Compose(parentWorld, n.LocalPose())
	}
	for _, c := range n.Children() {
		p.place(c, world, target)
	}
}
