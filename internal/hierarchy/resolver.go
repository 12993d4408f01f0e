// Package hierarchy resolves subordinate departments in the organization
// tree.
package hierarchy

import (
	"context"
	"fmt"
	"sort"

	"github.com/nhle/tracker/internal/model"
)

// DepartmentLister is the directory read the resolver walks.
type DepartmentLister interface {
	GetDepartments(ctx context.Context) ([]model.Department, error)
}

// Set is a set of department ids.
type Set map[string]struct{}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tree is an arena of departments indexed by id with a child index built
// from the parent links.
type Tree struct {
	nodes    map[string]model.Department
	children map[string][]string
}

// NewTree indexes the given departments. A department whose parent is not
// in the set is still indexed, but an id that is not itself in the tree
// has no subordinates.
func NewTree(depts []model.Department) *Tree {
	t := &Tree{
		nodes:    make(map[string]model.Department, len(depts)),
		children: make(map[string][]string),
	}
	for _, d := range depts {
		t.nodes[d.ID] = d
		if d.ParentID != nil && *d.ParentID != "" {
			t.children[*d.ParentID] = append(t.children[*d.ParentID], d.ID)
		}
	}
	return t
}

// Has reports whether a department with id exists in the tree.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Subordinates returns every strict descendant of id. The walk is an
// iterative breadth-first search with a visited set, so cyclic parent links
// terminate and id itself is never part of the result. Unknown ids yield an
// empty set.
func (t *Tree) Subordinates(id string) Set {
	out := Set{}
	if !t.Has(id) {
		return out
	}

	visited := map[string]bool{id: true}
	queue := append([]string(nil), t.children[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out[cur] = struct{}{}
		queue = append(queue, t.children[cur]...)
	}
	return out
}

// Resolver loads the department tree from the directory on each call.
type Resolver struct {
	lister DepartmentLister
}

// NewResolver creates a Resolver reading from lister.
func NewResolver(lister DepartmentLister) *Resolver {
	return &Resolver{lister: lister}
}

// Tree loads a snapshot of the department tree.
func (r *Resolver) Tree(ctx context.Context) (*Tree, error) {
	depts, err := r.lister.GetDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading departments: %w", err)
	}
	return NewTree(depts), nil
}

// Subordinates returns the strict descendants of departmentID.
func (r *Resolver) Subordinates(ctx context.Context, departmentID string) (Set, error) {
	tree, err := r.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Subordinates(departmentID), nil
}
