// Package projects manages projects and the cross-department grants that
// widen their visibility.
package projects

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/access"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// DefaultPriority applies when a project is created without one.
const DefaultPriority = 5

// CreateInput holds the caller-supplied fields of a new project.
type CreateInput struct {
	Name         string
	Description  string
	DepartmentID string
	Priority     int
}

// Service is the project entry point.
type Service struct {
	store  store.Store
	policy *access.Evaluator
	log    *logrus.Entry
}

// NewService wires a Service.
func NewService(st store.Store, policy *access.Evaluator, logger *logrus.Logger) *Service {
	return &Service{
		store:  st,
		policy: policy,
		log:    logger.WithField("component", "projects"),
	}
}

func (s *Service) actor(ctx context.Context, actorID string) (model.UserProfile, error) {
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return model.UserProfile{}, errors.Wrap(err, "load actor")
	}
	return *u, nil
}

// Create adds a project homed in a department the actor can see. Names are
// unique case-insensitively among active projects.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*model.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.Wrap(model.ErrValidation, "project name must not be empty")
	}
	priority := in.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	if priority < model.MinPriority || priority > model.MaxPriority {
		return nil, errors.Wrapf(model.ErrValidation, "priority %d outside [%d, %d]", priority, model.MinPriority, model.MaxPriority)
	}

	deptID := in.DepartmentID
	if deptID == "" {
		deptID = actor.DepartmentID
	}
	if _, err := s.store.GetDepartment(ctx, deptID); err != nil {
		return nil, err
	}
	scope, err := s.policy.VisibleDepartments(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.Contains(deptID) {
		return nil, errors.Wrapf(model.ErrUnauthorized, "user %s cannot create projects in %s", actor.ID, deptID)
	}

	p := model.Project{
		ID:           uuid.New().String(),
		Name:         name,
		Description:  in.Description,
		DepartmentID: deptID,
		CreatorID:    actor.ID,
		Priority:     priority,
		Status:       model.ProjectStatusActive,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create project")
	}

	s.log.WithFields(logrus.Fields{"project": p.ID, "actor": actor.ID}).Info("project created")
	return s.store.GetProject(ctx, p.ID)
}

// Get returns a project when it is visible to the actor.
func (s *Service) Get(ctx context.Context, actorID, projectID string) (*model.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ok, err := s.policy.IsProjectVisible(ctx, actor, *p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(model.ErrUnauthorized, "project %s is not visible to %s", projectID, actorID)
	}
	return p, nil
}

// VisibleForUser lists the active projects visible to userID through its
// department scope or a cross-department grant.
func (s *Service) VisibleForUser(ctx context.Context, userID string) ([]model.Project, error) {
	user, err := s.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.GetProjects(ctx, false)
	if err != nil {
		return nil, errors.Wrap(err, "list projects")
	}
	return s.policy.FilterVisibleProjects(ctx, user, all)
}

// manageable loads a project the actor may administer: its creator, or a
// holder of act who can see it.
func (s *Service) manageable(ctx context.Context, actorID, projectID string, act access.Action) (model.UserProfile, *model.Project, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return actor, nil, err
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return actor, nil, err
	}
	if p.CreatorID != actor.ID {
		allowed := s.policy.Allows(actor, act)
		if allowed {
			if allowed, err = s.policy.IsProjectVisible(ctx, actor, *p); err != nil {
				return actor, nil, err
			}
		}
		if !allowed {
			s.log.WithFields(logrus.Fields{
				"op":      string(act),
				"actor":   actor.ID,
				"project": projectID,
			}).Warn("project change denied")
			return actor, nil, errors.Wrapf(model.ErrUnauthorized, "user %s may not %s on project %s", actor.ID, act, projectID)
		}
	}
	if p.Archived {
		return actor, nil, errors.Wrapf(model.ErrConflict, "project %s is archived", projectID)
	}
	return actor, p, nil
}

// Archive soft-deletes a project, freeing its name for reuse.
func (s *Service) Archive(ctx context.Context, actorID, projectID string) error {
	_, _, err := s.manageable(ctx, actorID, projectID, access.ActionArchiveProject)
	if err != nil {
		return err
	}
	if err := s.store.ArchiveProject(ctx, projectID); err != nil {
		return errors.Wrap(err, "archive project")
	}
	return nil
}

// GrantAccess shares a project with another department.
func (s *Service) GrantAccess(ctx context.Context, actorID, projectID, departmentID string) error {
	actor, p, err := s.manageable(ctx, actorID, projectID, access.ActionGrantProject)
	if err != nil {
		return err
	}
	if departmentID == p.DepartmentID {
		return errors.Wrapf(model.ErrValidation, "project %s already belongs to %s", projectID, departmentID)
	}
	if _, err := s.store.GetDepartment(ctx, departmentID); err != nil {
		return err
	}

	err = s.store.AddProjectGrant(ctx, model.AccessGrant{
		ProjectID:    projectID,
		DepartmentID: departmentID,
		GrantedBy:    actor.ID,
	})
	if err != nil {
		return errors.Wrap(err, "grant project access")
	}
	s.log.WithFields(logrus.Fields{
		"project":    projectID,
		"department": departmentID,
		"actor":      actor.ID,
	}).Info("project access granted")
	return nil
}

// RevokeAccess removes a department's grant.
func (s *Service) RevokeAccess(ctx context.Context, actorID, projectID, departmentID string) error {
	if _, _, err := s.manageable(ctx, actorID, projectID, access.ActionGrantProject); err != nil {
		return err
	}
	if err := s.store.RemoveProjectGrant(ctx, projectID, departmentID); err != nil {
		return errors.Wrap(err, "revoke project access")
	}
	return nil
}

// Grants lists a visible project's grants.
func (s *Service) Grants(ctx context.Context, actorID, projectID string) ([]model.AccessGrant, error) {
	if _, err := s.Get(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	return s.store.GetProjectGrants(ctx, projectID)
}
