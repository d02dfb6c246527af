package assembly

import (
	"strings"

	"github.com/google/uuid"

	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/pose"
)

// Assembly is a tree of posed nodes plus the constraint set declared over
// them. It exclusively owns its nodes; constraints reference nodes by path
// and never own node state.
type Assembly struct {
	name        string
	root        *Node
	constraints []*Constraint
	seq         int
}

// New creates an empty assembly. The root node carries the assembly name,
// holds no solid, and is permanently pinned at the identity pose.
func New(name string) *Assembly {
	return &Assembly{
		name: name,
		root: &Node{
			name:   name,
			local:  pose.Identity(),
			byName: make(map[string]*Node),
		},
	}
}

// Name returns the assembly name.
func (a *Assembly) Name() string {
	return a.name
}

// Root returns the root node.
func (a *Assembly) Root() *Node {
	return a.root
}

// Add creates a node under the parent at parentPath and returns it.
// The solid may be nil for a pure grouping node. Fails with NameConflictError
// if the parent already has a child with this name, without mutating the
// graph.
func (a *Assembly) Add(parentPath, name string, solid kernel.Solid, initial pose.Pose) (*Node, error) {
	if name == "" {
		return nil, &InvalidNameError{Name: name, Reason: "must be non-empty"}
	}
	if strings.ContainsAny(name, "/@") {
		return nil, &InvalidNameError{Name: name, Reason: "must not contain '/' or '@'"}
	}

	parent, err := a.Resolve(parentPath)
	if err != nil {
		return nil, err
	}
	if parent.byName[name] != nil {
		return nil, &NameConflictError{Parent: parent.Path(), Name: name}
	}

	n := &Node{
		name:   name,
		solid:  solid,
		local:  initial,
		parent: parent,
		byName: make(map[string]*Node),
	}
	parent.children = append(parent.children, n)
	parent.byName[name] = n
	return n, nil
}

// Resolve returns the node at the given slash-separated path. The empty
// string and "." resolve to the root. Fails with NotFoundError if any path
// segment is missing.
func (a *Assembly) Resolve(path string) (*Node, error) {
	if path == "" || path == "." {
		return a.root, nil
	}
	cur := a.root
	for _, seg := range strings.Split(path, "/") {
		next := cur.byName[seg]
		if next == nil {
			return nil, &NotFoundError{Path: path}
		}
		cur = next
	}
	return cur, nil
}

// WorldPose returns the world pose of the node at path via ancestor
// composition. Read-only; always available regardless of solve state.
func (a *Assembly) WorldPose(path string) (pose.Pose, error) {
	n, err := a.Resolve(path)
	if err != nil {
		return pose.Pose{}, err
	}
	return n.WorldPose(), nil
}

// SetLocalPose replaces the node's pose relative to its parent. This is the
// only pose mutator the solver uses; calling it repeatedly with the same
// pose is idempotent. The root's pose is invariantly identity and is left
// untouched.
func (a *Assembly) SetLocalPose(n *Node, p pose.Pose) {
	if n == nil || n.parent == nil {
		return
	}
	n.local = p
}

// Remove detaches the node at path from its parent, destroying it together
// with all of its descendants. The root cannot be removed. Constraints that
// referenced removed nodes surface as NotFound at the next solve.
func (a *Assembly) Remove(path string) error {
	n, err := a.Resolve(path)
	if err != nil {
		return err
	}
	if n.parent == nil {
		return &InvalidNameError{Name: path, Reason: "cannot remove the assembly root"}
	}

	parent := n.parent
	delete(parent.byName, n.name)
	for i, c := range parent.children {
		if c == n {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	n.parent = nil
	return nil
}

// Constrain declares a pairwise constraint between two feature references
// ("path@feature" form), returning its ID. The optional trailing argument
// overrides the kind's default parameter. Both references must resolve to
// nodes in this assembly; otherwise the call fails with NotFoundError and
// nothing is recorded.
func (a *Assembly) Constrain(refA, refB string, kind Kind, param ...float64) (uuid.UUID, error) {
	ra := ParseRef(refA)
	rb := ParseRef(refB)

	for _, r := range []Ref{ra, rb} {
		if _, err := a.Resolve(r.Path); err != nil {
			return uuid.Nil, err
		}
	}

	p := kind.DefaultParam()
	if len(param) > 0 {
		p = param[0]
	}

	c := &Constraint{
		ID:    uuid.New(),
		Kind:  kind,
		A:     ra,
		B:     rb,
		Param: p,
		Seq:   a.seq,
	}
	a.seq++
	a.constraints = append(a.constraints, c)
	return c.ID, nil
}

// Constraints returns the constraint set in creation order.
func (a *Assembly) Constraints() []*Constraint {
	out := make([]*Constraint, len(a.constraints))
	copy(out, a.constraints)
	return out
}

// RemoveConstraint deletes the constraint with the given ID.
func (a *Assembly) RemoveConstraint(id uuid.UUID) error {
	for i, c := range a.constraints {
		if c.ID == id {
			a.constraints = append(a.constraints[:i], a.constraints[i+1:]...)
			return nil
		}
	}
	return &NotFoundError{Path: id.String()}
}

// ResolveRef resolves a feature reference to its node and concrete feature
// tag, mapping named anchors to the features they were tagged with.
func (a *Assembly) ResolveRef(r Ref) (*Node, kernel.FeatureID, error) {
	n, err := a.Resolve(r.Path)
	if err != nil {
		return nil, "", err
	}
	if f, ok := n.Anchor(r.Feature); ok {
		return n, f, nil
	}
	f := kernel.FeatureID(r.Feature)
	if !kernel.ValidFeatureIDs[f] {
		return nil, "", &kernel.UnsupportedFeatureError{
			Feature: f,
			Reason:  "no such feature or anchor on node " + r.Path,
		}
	}
	return n, f, nil
}
