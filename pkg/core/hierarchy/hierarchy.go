// Package hierarchy resolves which reservation units share physical space.
//
// Units form a forest: a parent space contains its sub-spaces. A booking on a
// unit conflicts with bookings on the unit itself, its ancestors and its
// descendants. Siblings under the same parent do not conflict with each
// other, but they share a root, which is the key used to serialize
// allocation decisions.
package hierarchy

import (
	"context"
	"fmt"
	"slices"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// Resolver answers hierarchy questions about reservation units
type Resolver interface {
	// Related returns the units whose reservations may conflict with unitID,
	// including unitID itself
	Related(ctx context.Context, unitID string) ([]string, error)

	// Root returns the top-most ancestor of unitID (unitID if it has no parent)
	Root(ctx context.Context, unitID string) (string, error)
}

// Tree is an in-memory Resolver built from a child to parent map
type Tree struct {
	parents  map[string]string
	children map[string][]string
}

// NewTree builds a Tree. parents maps a unit to its parent; top-level units
// may be omitted or mapped to "".
func NewTree(parents map[string]string) (*Tree, error) {
	t := &Tree{
		parents:  make(map[string]string, len(parents)),
		children: make(map[string][]string),
	}
	for child, parent := range parents {
		if parent == "" {
			continue
		}
		if parent == child {
			return nil, fmt.Errorf("unit %s is its own parent", child)
		}
		t.parents[child] = parent
		t.children[parent] = append(t.children[parent], child)
	}

	// Reject cycles up front so lookups never loop
	for unit := range t.parents {
		if _, err := t.root(unit); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Tree) root(unitID string) (string, error) {
	seen := map[string]bool{unitID: true}
	current := unitID
	for {
		parent, ok := t.parents[current]
		if !ok {
			return current, nil
		}
		if seen[parent] {
			return "", fmt.Errorf("cycle in unit hierarchy at %s", parent)
		}
		seen[parent] = true
		current = parent
	}
}

func (t *Tree) Root(_ context.Context, unitID string) (string, error) {
	return t.root(unitID)
}

func (t *Tree) Related(_ context.Context, unitID string) ([]string, error) {
	related := []string{unitID}

	// Ancestors
	for current := unitID; ; {
		parent, ok := t.parents[current]
		if !ok {
			break
		}
		related = append(related, parent)
		current = parent
	}

	// Descendants
	queue := slices.Clone(t.children[unitID])
	for len(queue) > 0 {
		child := queue[0]
		queue = queue[1:]
		related = append(related, child)
		queue = append(queue, t.children[child]...)
	}

	slices.Sort(related)
	return slices.Compact(related), nil
}

// Resolution is the hierarchy data for a set of units, resolved once so the
// allocation solver can run without I/O
type Resolution struct {
	// Related maps every requested unit to its related units
	Related map[string][]string

	// Roots lists the distinct roots of the requested units, sorted
	Roots []string
}

// Resolve looks up related units and roots for every unit in unitIDs.
// Failures are reported as *model.ExternalCollaboratorError.
func Resolve(ctx context.Context, resolver Resolver, unitIDs []string) (*Resolution, error) {
	res := &Resolution{Related: make(map[string][]string, len(unitIDs))}
	roots := make([]string, 0, len(unitIDs))

	for _, unitID := range unitIDs {
		if _, done := res.Related[unitID]; done {
			continue
		}
		related, err := resolver.Related(ctx, unitID)
		if err != nil {
			return nil, &model.ExternalCollaboratorError{Collaborator: "resource hierarchy", Err: err}
		}
		root, err := resolver.Root(ctx, unitID)
		if err != nil {
			return nil, &model.ExternalCollaboratorError{Collaborator: "resource hierarchy", Err: err}
		}
		res.Related[unitID] = related
		roots = append(roots, root)
	}

	slices.Sort(roots)
	res.Roots = slices.Compact(roots)
	return res, nil
}
