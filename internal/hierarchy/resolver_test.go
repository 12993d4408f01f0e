package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
)

type staticLister struct {
	depts []model.Department
	err   error
}

func (l staticLister) GetDepartments(context.Context) ([]model.Department, error) {
	return l.depts, l.err
}

func dept(id string, parent string) model.Department {
	d := model.Department{ID: id, Name: id}
	if parent != "" {
		d.ParentID = &parent
	}
	return d
}

func TestTreeSubordinates(t *testing.T) {
	tree := NewTree([]model.Department{
		dept("root", ""),
		dept("child", "root"),
		dept("grandchild", "child"),
		dept("sibling", "root"),
		dept("other", ""),
		dept("orphan", "ghost"),
		dept("orphan_child", "orphan"),
	})

	tests := []struct {
		name string
		id   string
		want []string
	}{
		{name: "root", id: "root", want: []string{"child", "grandchild", "sibling"}},
		{name: "child", id: "child", want: []string{"grandchild"}},
		{name: "leaf", id: "grandchild", want: []string{}},
		{name: "unrelated root", id: "other", want: []string{}},
		{name: "nonexistent", id: "missing", want: []string{}},
		{name: "missing parent", id: "ghost", want: []string{}},
		{name: "orphan", id: "orphan", want: []string{"orphan_child"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tree.Subordinates(tt.id).Sorted())
		})
	}
}

func TestTreeSubordinatesCycle(t *testing.T) {
	tree := NewTree([]model.Department{
		dept("a", "c"),
		dept("b", "a"),
		dept("c", "b"),
		dept("d", "c"),
	})

	require.Equal(t, []string{"b", "c", "d"}, tree.Subordinates("a").Sorted())
	require.False(t, tree.Subordinates("a").Has("a"))
}

func TestTreeSubordinatesSelfParent(t *testing.T) {
	tree := NewTree([]model.Department{dept("self", "self")})
	require.Empty(t, tree.Subordinates("self"))
}

func TestResolverSubordinates(t *testing.T) {
	r := NewResolver(staticLister{depts: []model.Department{
		dept("root", ""),
		dept("child", "root"),
		dept("grandchild", "child"),
	}})

	got, err := r.Subordinates(context.Background(), "root")
	require.NoError(t, err)
	require.Equal(t, []string{"child", "grandchild"}, got.Sorted())

	got, err = r.Subordinates(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestResolverPropagatesListerError(t *testing.T) {
	r := NewResolver(staticLister{err: errors.New("boom")})
	_, err := r.Subordinates(context.Background(), "root")
	require.Error(t, err)
}
