// Package assembly defines the assembly graph: a tree of named, posed
// nodes owning geometry kernel solids, plus the pairwise constraints
// declared between their features.
package assembly
