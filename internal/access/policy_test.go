package access

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
)

type memDirectory struct {
	depts  []model.Department
	users  map[string]model.UserProfile
	grants map[string][]model.AccessGrant
}

func (d *memDirectory) GetDepartments(context.Context) ([]model.Department, error) {
	return d.depts, nil
}

func (d *memDirectory) GetUsers(_ context.Context, ids []string) ([]model.UserProfile, error) {
	var out []model.UserProfile
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *memDirectory) GetProjectGrants(_ context.Context, projectID string) ([]model.AccessGrant, error) {
	return d.grants[projectID], nil
}

func ptr(s string) *string { return &s }

// Tree: root -> child -> grandchild, root -> sibling, plus unrelated "ops".
func newFixture(t *testing.T) (*Evaluator, *memDirectory) {
	t.Helper()
	dir := &memDirectory{
		depts: []model.Department{
			{ID: "root"},
			{ID: "child", ParentID: ptr("root")},
			{ID: "grandchild", ParentID: ptr("child")},
			{ID: "sibling", ParentID: ptr("root")},
			{ID: "ops"},
		},
		users: map[string]model.UserProfile{
			"root_mgr":  {ID: "root_mgr", Role: model.RoleManager, DepartmentID: "root"},
			"child_mgr": {ID: "child_mgr", Role: model.RoleManager, DepartmentID: "child"},
			"staff":     {ID: "staff", Role: model.RoleStaff, DepartmentID: "child"},
			"gc_staff":  {ID: "gc_staff", Role: model.RoleStaff, DepartmentID: "grandchild"},
			"ops_staff": {ID: "ops_staff", Role: model.RoleStaff, DepartmentID: "ops"},
			"ops_mgr":   {ID: "ops_mgr", Role: model.RoleManager, DepartmentID: "ops"},
			"hr":        {ID: "hr", Role: model.RoleHRAdmin, DepartmentID: "ops"},
			"flagged":   {ID: "flagged", Role: model.RoleStaff, IsHRAdmin: true, DepartmentID: "ops"},
		},
		grants: map[string][]model.AccessGrant{},
	}
	return NewEvaluator(dir, MustCapabilities()), dir
}

func TestVisibleDepartments(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()

	scope, err := e.VisibleDepartments(ctx, dir.users["staff"])
	require.NoError(t, err)
	require.False(t, scope.All)
	require.Equal(t, []string{"child"}, scope.Departments.Sorted())

	scope, err = e.VisibleDepartments(ctx, dir.users["child_mgr"])
	require.NoError(t, err)
	require.Equal(t, []string{"child", "grandchild"}, scope.Departments.Sorted())

	scope, err = e.VisibleDepartments(ctx, dir.users["root_mgr"])
	require.NoError(t, err)
	require.Equal(t, []string{"child", "grandchild", "root", "sibling"}, scope.Departments.Sorted())
	require.False(t, scope.Contains("ops"))

	for _, id := range []string{"hr", "flagged"} {
		scope, err = e.VisibleDepartments(ctx, dir.users[id])
		require.NoError(t, err)
		require.True(t, scope.All, id)
		require.True(t, scope.Contains("anything"))
	}
}

func TestManagerScopeExcludesSiblings(t *testing.T) {
	e, dir := newFixture(t)
	scope, err := e.VisibleDepartments(context.Background(), dir.users["child_mgr"])
	require.NoError(t, err)
	require.True(t, scope.Contains("child"))
	require.False(t, scope.Contains("sibling"))
	require.False(t, scope.Contains("root"))
	require.False(t, scope.Contains("ops"))
}

func TestIsTaskVisible(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()

	opsTask := model.Task{ID: "t1", OwnerID: "ops_staff", DepartmentID: "ops", Assignees: []string{"ops_staff"}}
	crossTask := model.Task{ID: "t2", OwnerID: "ops_staff", DepartmentID: "ops", Assignees: []string{"ops_staff", "gc_staff"}}

	tests := []struct {
		name string
		user string
		task model.Task
		want bool
	}{
		{name: "owner", user: "ops_staff", task: opsTask, want: true},
		{name: "unrelated manager", user: "root_mgr", task: opsTask, want: false},
		{name: "assignee hierarchy", user: "root_mgr", task: crossTask, want: true},
		{name: "assignee hierarchy direct manager", user: "child_mgr", task: crossTask, want: true},
		{name: "staff not in assignee dept", user: "staff", task: crossTask, want: false},
		{name: "assignee staff sees own dept assignment", user: "gc_staff", task: crossTask, want: true},
		{name: "hr admin", user: "hr", task: opsTask, want: true},
		{name: "same department manager", user: "ops_mgr", task: opsTask, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.IsTaskVisible(ctx, dir.users[tt.user], tt.task)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIsProjectVisible(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()

	childProject := model.Project{ID: "p1", DepartmentID: "child"}
	opsProject := model.Project{ID: "p2", DepartmentID: "ops"}

	ok, err := e.IsProjectVisible(ctx, dir.users["root_mgr"], childProject)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.IsProjectVisible(ctx, dir.users["root_mgr"], opsProject)
	require.NoError(t, err)
	require.False(t, ok)

	dir.grants["p2"] = []model.AccessGrant{{ProjectID: "p2", DepartmentID: "grandchild", GrantedBy: "ops_mgr"}}

	ok, err = e.IsProjectVisible(ctx, dir.users["root_mgr"], opsProject)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.IsProjectVisible(ctx, dir.users["staff"], opsProject)
	require.NoError(t, err)
	require.False(t, ok, "grant to grandchild is outside a child staff scope")

	visible, err := e.FilterVisibleProjects(ctx, dir.users["child_mgr"], []model.Project{childProject, opsProject})
	require.NoError(t, err)
	require.Len(t, visible, 2)
}

func TestCanEdit(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()

	task := model.Task{ID: "t", OwnerID: "gc_staff", DepartmentID: "grandchild", Assignees: []string{"gc_staff", "staff"}}

	tests := []struct {
		user string
		want bool
	}{
		{user: "gc_staff", want: true},
		{user: "staff", want: false},
		{user: "child_mgr", want: true},
		{user: "root_mgr", want: true},
		{user: "ops_mgr", want: false},
		{user: "hr", want: true},
		{user: "flagged", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got, err := e.CanEdit(ctx, dir.users[tt.user], task)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanComment(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()
	task := model.Task{ID: "t", OwnerID: "ops_staff", DepartmentID: "ops", Assignees: []string{"ops_staff", "gc_staff"}}

	ok, err := e.CanComment(ctx, dir.users["gc_staff"], task)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.CanComment(ctx, dir.users["staff"], task)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeAddAssignee(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()

	task := model.Task{ID: "t", OwnerID: "gc_staff", DepartmentID: "grandchild", Assignees: []string{"gc_staff", "staff"}}

	require.NoError(t, e.AuthorizeAddAssignee(ctx, dir.users["gc_staff"], task))
	require.NoError(t, e.AuthorizeAddAssignee(ctx, dir.users["staff"], task), "existing assignee may add")
	require.NoError(t, e.AuthorizeAddAssignee(ctx, dir.users["root_mgr"], task))
	require.ErrorIs(t, e.AuthorizeAddAssignee(ctx, dir.users["ops_mgr"], task), model.ErrUnauthorized)
	require.ErrorIs(t, e.AuthorizeAddAssignee(ctx, dir.users["ops_staff"], task), model.ErrUnauthorized)

	full := task
	full.Assignees = []string{"a", "b", "c", "d", "e"}
	for id, u := range dir.users {
		err := e.AuthorizeAddAssignee(ctx, u, full)
		require.ErrorIs(t, err, model.ErrConflict, id)
	}

	ok, err := e.CanAddAssignee(ctx, dir.users["root_mgr"], full)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeRemoveAssignee(t *testing.T) {
	e, dir := newFixture(t)
	ctx := context.Background()

	task := model.Task{ID: "t", OwnerID: "gc_staff", DepartmentID: "grandchild", Assignees: []string{"gc_staff", "staff"}}

	require.NoError(t, e.AuthorizeRemoveAssignee(ctx, dir.users["child_mgr"], task))
	require.NoError(t, e.AuthorizeRemoveAssignee(ctx, dir.users["hr"], task))
	require.ErrorIs(t, e.AuthorizeRemoveAssignee(ctx, dir.users["gc_staff"], task), model.ErrUnauthorized, "staff owner cannot remove")
	require.ErrorIs(t, e.AuthorizeRemoveAssignee(ctx, dir.users["ops_mgr"], task), model.ErrUnauthorized)

	single := task
	single.Assignees = []string{"gc_staff"}
	for id, u := range dir.users {
		err := e.AuthorizeRemoveAssignee(ctx, u, single)
		require.ErrorIs(t, err, model.ErrConflict, id)
	}

	ok, err := e.CanRemoveAssignee(ctx, dir.users["child_mgr"], task)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCapabilitiesInheritance(t *testing.T) {
	caps := MustCapabilities()

	require.True(t, caps.Allows(model.RoleStaff, ActionComment))
	require.False(t, caps.Allows(model.RoleStaff, ActionEditTask))
	require.True(t, caps.Allows(model.RoleManager, ActionComment))
	require.True(t, caps.Allows(model.RoleManager, ActionRemoveAssignee))
	require.False(t, caps.Allows(model.RoleManager, ActionViewAll))
	require.True(t, caps.Allows(model.RoleHRAdmin, ActionEditTask))
	require.True(t, caps.Allows(model.RoleHRAdmin, ActionViewAll))
	require.False(t, caps.Allows(model.Role("GUEST"), ActionComment))
}

func TestCapabilitiesReportEnforceFailure(t *testing.T) {
	// A three-field request cannot be satisfied by the two-field checks.
	broken := strings.Replace(roleModel, "r = sub, act", "r = sub, obj, act", 1)
	caps, err := newCapabilities(broken)
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	caps.SetLogger(logger)

	_, err = caps.Enforce(model.RoleManager, ActionEditTask)
	require.Error(t, err)

	require.False(t, caps.Allows(model.RoleManager, ActionEditTask))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.ErrorLevel, entry.Level)
	require.Equal(t, "capability check failed", entry.Message)
	require.Equal(t, ActionEditTask, entry.Data["action"])
}
