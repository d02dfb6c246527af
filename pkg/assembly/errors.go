package assembly

import "fmt"

// NameConflictError is returned by Add when a node with the same name
// already exists under the same parent. The graph is not mutated.
type NameConflictError struct {
	Parent string // path of the parent node
	Name   string // conflicting child name
}

func (e *NameConflictError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("node %q already exists at the assembly root", e.Name)
	}
	return fmt.Sprintf("node %q already exists under %q", e.Name, e.Parent)
}

// NotFoundError is returned when a path or constraint reference does not
// resolve to a node in the graph.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no node at path %q", e.Path)
}

// InvalidNameError is returned by Add for empty names or names containing
// path/reference separator characters.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid node name %q: %s", e.Name, e.Reason)
}
