package assembly

import (
	"strings"

	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/pose"
)

// Node is a single body (or grouping) in the assembly tree. It owns its
// solid and its local pose; world placement is the composition of every
// ancestor's local pose with its own.
type Node struct {
	name    string
	solid   kernel.Solid // nil for pure grouping nodes
	local   pose.Pose
	anchors map[string]kernel.FeatureID

	parent   *Node
	children []*Node // insertion order, for deterministic walks
	byName   map[string]*Node
}

// Name returns the node's name, unique among its siblings.
func (n *Node) Name() string {
	return n.name
}

// Path returns the node's slash-separated path from the root. The root's
// path is the empty string.
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	// Reverse: collected leaf-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Solid returns the node's solid, or nil for grouping nodes.
func (n *Node) Solid() kernel.Solid {
	return n.solid
}

// LocalPose returns the node's pose relative to its parent.
func (n *Node) LocalPose() pose.Pose {
	return n.local
}

// WorldPose computes the node's world pose by composing local poses from
// the root down. The root is pinned at identity.
func (n *Node) WorldPose() pose.Pose {
	if n.parent == nil {
		return pose.Identity()
	}
	return pose.Compose(n.parent.WorldPose(), n.local)
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether the node is the assembly root.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Children returns the node's children in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Child returns the child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	return n.byName[name]
}

// SetAnchor tags a feature of the node's solid so constraints can address
// it by name. Re-tagging an existing anchor overwrites it.
func (n *Node) SetAnchor(tag string, f kernel.FeatureID) error {
	if tag == "" {
		return &InvalidNameError{Name: tag, Reason: "anchor tag must be non-empty"}
	}
	if !kernel.ValidFeatureIDs[f] {
		return &kernel.UnsupportedFeatureError{Feature: f, Reason: "unknown feature tag"}
	}
	if n.anchors == nil {
		n.anchors = make(map[string]kernel.FeatureID)
	}
	n.anchors[tag] = f
	return nil
}

// Anchor looks up a named anchor on the node.
func (n *Node) Anchor(tag string) (kernel.FeatureID, bool) {
	f, ok := n.anchors[tag]
	return f, ok
}
