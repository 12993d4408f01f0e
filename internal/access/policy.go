// Package access decides which tasks and projects a user may see or mutate
// in the department tree.
package access

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/nhle/tracker/internal/hierarchy"
	"github.com/nhle/tracker/internal/model"
)

// Directory is the user and department read the evaluator needs.
type Directory interface {
	hierarchy.DepartmentLister
	GetUsers(ctx context.Context, ids []string) ([]model.UserProfile, error)
	GetProjectGrants(ctx context.Context, projectID string) ([]model.AccessGrant, error)
}

// Scope is the set of departments visible to a user, or every department.
type Scope struct {
	All         bool
	Departments hierarchy.Set
}

// Contains reports whether deptID is inside the scope.
func (s Scope) Contains(deptID string) bool {
	return s.All || s.Departments.Has(deptID)
}

// Evaluator is the single place where role, ownership, assignment and
// hierarchy rules combine into visibility and mutation decisions.
type Evaluator struct {
	dir      Directory
	resolver *hierarchy.Resolver
	caps     *Capabilities
}

// NewEvaluator creates an Evaluator over dir using the given role table.
func NewEvaluator(dir Directory, caps *Capabilities) *Evaluator {
	return &Evaluator{
		dir:      dir,
		resolver: hierarchy.NewResolver(dir),
		caps:     caps,
	}
}

// Resolver exposes the department resolver the evaluator walks.
func (e *Evaluator) Resolver() *hierarchy.Resolver {
	return e.resolver
}

// Allows reports whether the user's effective role carries act.
func (e *Evaluator) Allows(user model.UserProfile, act Action) bool {
	return e.caps.Allows(user.EffectiveRole(), act)
}

// VisibleDepartments returns the home department for staff, the home
// department plus its subordinates for managers, and every department for
// HR admins.
func (e *Evaluator) VisibleDepartments(ctx context.Context, user model.UserProfile) (Scope, error) {
	if e.Allows(user, ActionViewAll) {
		return Scope{All: true}, nil
	}

	scope := Scope{Departments: hierarchy.Set{user.DepartmentID: {}}}
	if !e.Allows(user, ActionViewSubtree) {
		return scope, nil
	}

	subs, err := e.resolver.Subordinates(ctx, user.DepartmentID)
	if err != nil {
		return Scope{}, errors.Wrap(err, "resolve subordinates")
	}
	for id := range subs {
		scope.Departments[id] = struct{}{}
	}
	return scope, nil
}

// IsTaskVisible reports whether the task's department, any assignee's home
// department, or ownership puts the task in front of user.
func (e *Evaluator) IsTaskVisible(ctx context.Context, user model.UserProfile, task model.Task) (bool, error) {
	if user.ID == task.OwnerID {
		return true, nil
	}
	scope, err := e.VisibleDepartments(ctx, user)
	if err != nil {
		return false, err
	}
	return e.taskInScope(ctx, scope, task)
}

func (e *Evaluator) taskInScope(ctx context.Context, scope Scope, task model.Task) (bool, error) {
	if scope.Contains(task.DepartmentID) {
		return true, nil
	}
	if len(task.Assignees) == 0 {
		return false, nil
	}

	assignees, err := e.dir.GetUsers(ctx, task.Assignees)
	if err != nil {
		return false, errors.Wrap(err, "load assignees")
	}
	for _, a := range assignees {
		if scope.Contains(a.DepartmentID) {
			return true, nil
		}
	}
	return false, nil
}

// IsProjectVisible reports whether the project's home department or any of
// its cross-department grants falls inside the user's scope.
func (e *Evaluator) IsProjectVisible(ctx context.Context, user model.UserProfile, project model.Project) (bool, error) {
	scope, err := e.VisibleDepartments(ctx, user)
	if err != nil {
		return false, err
	}
	return e.projectInScope(ctx, scope, project)
}

func (e *Evaluator) projectInScope(ctx context.Context, scope Scope, project model.Project) (bool, error) {
	if scope.Contains(project.DepartmentID) {
		return true, nil
	}
	grants, err := e.dir.GetProjectGrants(ctx, project.ID)
	if err != nil {
		return false, errors.Wrap(err, "load project grants")
	}
	for _, g := range grants {
		if scope.Contains(g.DepartmentID) {
			return true, nil
		}
	}
	return false, nil
}

// FilterVisibleProjects keeps the projects visible to user, preserving order.
func (e *Evaluator) FilterVisibleProjects(ctx context.Context, user model.UserProfile, projects []model.Project) ([]model.Project, error) {
	scope, err := e.VisibleDepartments(ctx, user)
	if err != nil {
		return nil, err
	}
	visible := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		ok, err := e.projectInScope(ctx, scope, p)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// CanEdit reports whether user may change task fields, status or archive
// state. Owners always may; otherwise manager authority over a visible task
// is required.
func (e *Evaluator) CanEdit(ctx context.Context, user model.UserProfile, task model.Task) (bool, error) {
	if user.ID == task.OwnerID {
		return true, nil
	}
	if !e.Allows(user, ActionEditTask) {
		return false, nil
	}
	return e.IsTaskVisible(ctx, user, task)
}

// CanComment reports whether user participates in the task: owner,
// assignee, or anyone the task is visible to.
func (e *Evaluator) CanComment(ctx context.Context, user model.UserProfile, task model.Task) (bool, error) {
	if !e.Allows(user, ActionComment) {
		return false, nil
	}
	if task.HasAssignee(user.ID) {
		return true, nil
	}
	return e.IsTaskVisible(ctx, user, task)
}

// AuthorizeAddAssignee returns ErrConflict when the task already holds
// MaxAssignees, and ErrUnauthorized unless user is the owner, an existing
// assignee, or a manager who can see the task. The count check runs first so
// a full task reports the same error to every caller.
func (e *Evaluator) AuthorizeAddAssignee(ctx context.Context, user model.UserProfile, task model.Task) error {
	if len(task.Assignees)+1 > model.MaxAssignees {
		return errors.Wrapf(model.ErrConflict, "task %s already has %d assignees", task.ID, len(task.Assignees))
	}
	if user.ID == task.OwnerID || task.HasAssignee(user.ID) {
		return nil
	}
	if e.Allows(user, ActionAddAssignee) {
		visible, err := e.IsTaskVisible(ctx, user, task)
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
	}
	return errors.Wrapf(model.ErrUnauthorized, "user %s may not add assignees to task %s", user.ID, task.ID)
}

// CanAddAssignee is AuthorizeAddAssignee as a predicate.
func (e *Evaluator) CanAddAssignee(ctx context.Context, user model.UserProfile, task model.Task) (bool, error) {
	return predicate(e.AuthorizeAddAssignee(ctx, user, task))
}

// AuthorizeRemoveAssignee returns ErrConflict when removal would leave fewer
// than MinAssignees, and ErrUnauthorized unless user has manager authority
// and either owns or can see the task.
func (e *Evaluator) AuthorizeRemoveAssignee(ctx context.Context, user model.UserProfile, task model.Task) error {
	if len(task.Assignees)-1 < model.MinAssignees {
		return errors.Wrapf(model.ErrConflict, "task %s must keep at least %d assignee", task.ID, model.MinAssignees)
	}
	if e.Allows(user, ActionRemoveAssignee) {
		visible, err := e.IsTaskVisible(ctx, user, task)
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
	}
	return errors.Wrapf(model.ErrUnauthorized, "user %s may not remove assignees from task %s", user.ID, task.ID)
}

// CanRemoveAssignee is AuthorizeRemoveAssignee as a predicate.
func (e *Evaluator) CanRemoveAssignee(ctx context.Context, user model.UserProfile, task model.Task) (bool, error) {
	return predicate(e.AuthorizeRemoveAssignee(ctx, user, task))
}

// predicate turns policy errors into a boolean, keeping lookup failures.
func predicate(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrConflict):
		return false, nil
	}
	return false, err
}
