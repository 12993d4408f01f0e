// Package tasks applies validated, authorized mutations to tasks and their
// comments, spawning recurring successors and fanning out notifications.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/access"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/notify"
	"github.com/nhle/tracker/internal/recurrence"
	"github.com/nhle/tracker/internal/store"
)

// Notifier fans an event out to the task's assignees.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) ([]model.Notification, error)
}

// CreateInput holds the caller-supplied fields of a new task.
type CreateInput struct {
	Title          string
	Description    string
	Priority       int
	DueDate        time.Time
	DepartmentID   string
	ProjectID      *string
	ParentTaskID   *string
	Assignees      []string
	RecurrenceDays *int
}

// Patch lists the task fields UpdateTask may change. Nil fields are kept.
type Patch struct {
	Title           *string
	Description     *string
	Priority        *int
	DueDate         *time.Time
	RecurrenceDays  *int
	ClearRecurrence bool
}

// StatusResult is the outcome of UpdateStatus.
type StatusResult struct {
	Task      model.Task
	Changed   bool
	Successor *model.Task
}

// Service is the task mutation entry point.
type Service struct {
	store    store.Store
	policy   *access.Evaluator
	notifier Notifier
	engine   *recurrence.Engine
	log      *logrus.Entry
}

// NewService wires a Service.
func NewService(
	st store.Store,
	policy *access.Evaluator,
	notifier Notifier,
	engine *recurrence.Engine,
	logger *logrus.Logger,
) *Service {
	return &Service{
		store:    st,
		policy:   policy,
		notifier: notifier,
		engine:   engine,
		log:      logger.WithField("component", "tasks"),
	}
}

func (s *Service) actor(ctx context.Context, actorID string) (model.UserProfile, error) {
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return model.UserProfile{}, errors.Wrap(err, "load actor")
	}
	return *u, nil
}

func (s *Service) deny(op string, actor model.UserProfile, taskID string, err error) error {
	s.log.WithFields(logrus.Fields{
		"op":    op,
		"actor": actor.ID,
		"task":  taskID,
		"kind":  model.Kind(err),
	}).Warn("mutation denied")
	return err
}

func (s *Service) notify(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"task": ev.Task.ID,
			"type": ev.Type,
		}).Error("notification fanout failed")
	}
}

func validatePriority(p int) error {
	if p < model.MinPriority || p > model.MaxPriority {
		return errors.Wrapf(model.ErrValidation, "priority %d outside [%d, %d]", p, model.MinPriority, model.MaxPriority)
	}
	return nil
}

func validateRecurrence(days *int, parent *string) error {
	if days == nil {
		return nil
	}
	if parent != nil {
		return errors.Wrap(model.ErrValidation, "subtasks cannot recur")
	}
	if *days <= 0 {
		return errors.Wrapf(model.ErrValidation, "recurrence interval %d must be positive", *days)
	}
	return nil
}

// GetTask returns a task when it is visible to the actor.
func (s *Service) GetTask(ctx context.Context, actorID, taskID string) (*model.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	visible, err := s.policy.IsTaskVisible(ctx, actor, *task)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, errors.Wrapf(model.ErrUnauthorized, "task %s is not visible to %s", taskID, actorID)
	}
	return task, nil
}

// Comments lists a visible task's comments oldest first.
func (s *Service) Comments(ctx context.Context, actorID, taskID string) ([]model.Comment, error) {
	if _, err := s.GetTask(ctx, actorID, taskID); err != nil {
		return nil, err
	}
	out, err := s.store.GetComments(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "list comments")
	}
	if out == nil {
		out = []model.Comment{}
	}
	return out, nil
}

// ListVisible returns the non-archived tasks visible to the actor.
func (s *Service) ListVisible(ctx context.Context, actorID string) ([]model.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.GetTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	out := make([]model.Task, 0, len(all))
	for _, t := range all {
		ok, err := s.policy.IsTaskVisible(ctx, actor, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create validates in and persists a new task owned by the actor. The owner
// is always assigned; a subtask inherits the parent's project.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (_ *model.Task, err error) {
	defer func(started time.Time) { recordMutation("create", err, started) }(time.Now())

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.Wrap(model.ErrValidation, "title must not be empty")
	}
	if err := validatePriority(in.Priority); err != nil {
		return nil, err
	}
	if in.DueDate.IsZero() {
		return nil, errors.Wrap(model.ErrValidation, "due date is required")
	}
	if err := validateRecurrence(in.RecurrenceDays, in.ParentTaskID); err != nil {
		return nil, err
	}

	assignees := []string{actor.ID}
	for _, id := range in.Assignees {
		if id != "" && !slices.Contains(assignees, id) {
			assignees = append(assignees, id)
		}
	}
	if len(assignees) > model.MaxAssignees {
		return nil, errors.Wrapf(model.ErrValidation, "%d assignees exceeds the limit of %d", len(assignees), model.MaxAssignees)
	}
	found, err := s.store.GetUsers(ctx, assignees)
	if err != nil {
		return nil, errors.Wrap(err, "load assignees")
	}
	if len(found) != len(assignees) {
		return nil, errors.Wrapf(model.ErrNotFound, "assignee %s", missingUser(assignees, found))
	}

	deptID := in.DepartmentID
	if deptID == "" {
		deptID = actor.DepartmentID
	}
	if _, err := s.store.GetDepartment(ctx, deptID); err != nil {
		return nil, err
	}

	task := model.Task{
		ID:             uuid.New().String(),
		Title:          title,
		Description:    in.Description,
		Priority:       in.Priority,
		DueDate:        model.DateOf(in.DueDate),
		Status:         model.StatusToDo,
		OwnerID:        actor.ID,
		DepartmentID:   deptID,
		ProjectID:      in.ProjectID,
		Assignees:      assignees,
		RecurrenceDays: in.RecurrenceDays,
	}

	if in.ParentTaskID != nil {
		parent, err := s.store.GetTask(ctx, *in.ParentTaskID)
		if err != nil {
			return nil, errors.Wrap(err, "load parent task")
		}
		if parent.Archived {
			return nil, errors.Wrapf(model.ErrConflict, "parent task %s is archived", parent.ID)
		}
		visible, err := s.policy.IsTaskVisible(ctx, actor, *parent)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, s.deny("create", actor, parent.ID,
				errors.Wrapf(model.ErrUnauthorized, "parent task %s is not visible", parent.ID))
		}
		if task.DueDate.After(parent.DueDate) {
			return nil, errors.Wrapf(model.ErrValidation, "subtask due %s is after parent due %s",
				task.DueDate.Format(time.DateOnly), parent.DueDate.Format(time.DateOnly))
		}
		if in.ProjectID != nil && (parent.ProjectID == nil || *parent.ProjectID != *in.ProjectID) {
			return nil, errors.Wrap(model.ErrValidation, "subtask project must match its parent")
		}
		task.ParentTaskID = &parent.ID
		task.ProjectID = parent.ProjectID
	} else if in.ProjectID != nil {
		project, err := s.store.GetProject(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if project.Archived {
			return nil, errors.Wrapf(model.ErrConflict, "project %s is archived", project.ID)
		}
		visible, err := s.policy.IsProjectVisible(ctx, actor, *project)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, s.deny("create", actor, "",
				errors.Wrapf(model.ErrUnauthorized, "project %s is not visible", project.ID))
		}
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, errors.Wrap(err, "create task")
	}
	out, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return nil, errors.Wrap(err, "reload task")
	}

	s.notify(ctx, notify.Event{
		Type:      model.NotifyTaskAssigned,
		Actor:     actor,
		Task:      *out,
		Assignees: out.Assignees,
	})
	return out, nil
}

func missingUser(want []string, found []model.UserProfile) string {
	for _, id := range want {
		if !slices.ContainsFunc(found, func(u model.UserProfile) bool { return u.ID == id }) {
			return id
		}
	}
	return ""
}

func (s *Service) editable(ctx context.Context, op, actorID, taskID string) (model.UserProfile, *model.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return model.UserProfile{}, nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return actor, nil, err
	}
	ok, err := s.policy.CanEdit(ctx, actor, *task)
	if err != nil {
		return actor, nil, err
	}
	if !ok {
		return actor, nil, s.deny(op, actor, taskID,
			errors.Wrapf(model.ErrUnauthorized, "user %s may not edit task %s", actorID, taskID))
	}
	if task.Archived {
		return actor, nil, errors.Wrapf(model.ErrConflict, "task %s is archived", taskID)
	}
	return actor, task, nil
}

// UpdateStatus moves a task to status. Completing a recurring top-level task
// spawns its successor in the same transaction; repeated completions spawn
// nothing further.
func (s *Service) UpdateStatus(ctx context.Context, actorID, taskID string, status model.TaskStatus) (_ *StatusResult, err error) {
	defer func(started time.Time) { recordMutation("update_status", err, started) }(time.Now())

	if !status.Valid() {
		return nil, errors.Wrapf(model.ErrValidation, "unknown status %q", status)
	}
	actor, _, err := s.editable(ctx, "update_status", actorID, taskID)
	if err != nil {
		return nil, err
	}

	tr, err := s.store.TransitionStatus(ctx, taskID, status, s.engine.Spawner())
	if err != nil {
		return nil, errors.Wrap(err, "transition status")
	}
	res := &StatusResult{Task: tr.Task, Changed: tr.Changed, Successor: tr.Successor}
	if !tr.Changed {
		return res, nil
	}

	if tr.Successor != nil {
		successorsTotal.Inc()
		s.log.WithFields(logrus.Fields{
			"task":      taskID,
			"successor": tr.Successor.ID,
			"due":       tr.Successor.DueDate.Format(time.DateOnly),
		}).Info("spawned recurring successor")
	}

	s.notify(ctx, notify.Event{
		Type:      model.NotifyTaskUpdated,
		Actor:     actor,
		Task:      tr.Task,
		Assignees: tr.Task.Assignees,
		Detail:    fmt.Sprintf("status changed from %s to %s", tr.Previous, status),
	})
	return res, nil
}

// UpdateTask applies p. Owner, department, project and parent are not
// patchable.
func (s *Service) UpdateTask(ctx context.Context, actorID, taskID string, p Patch) (_ *model.Task, err error) {
	defer func(started time.Time) { recordMutation("update_task", err, started) }(time.Now())

	actor, task, err := s.editable(ctx, "update_task", actorID, taskID)
	if err != nil {
		return nil, err
	}

	next := *task
	var changed []string
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, errors.Wrap(model.ErrValidation, "title must not be empty")
		}
		next.Title = title
		changed = append(changed, "title")
	}
	if p.Description != nil {
		next.Description = *p.Description
		changed = append(changed, "description")
	}
	if p.Priority != nil {
		if err := validatePriority(*p.Priority); err != nil {
			return nil, err
		}
		next.Priority = *p.Priority
		changed = append(changed, "priority")
	}
	if p.DueDate != nil {
		next.DueDate = model.DateOf(*p.DueDate)
		changed = append(changed, "due date")
	}
	switch {
	case p.ClearRecurrence:
		next.RecurrenceDays = nil
		changed = append(changed, "recurrence")
	case p.RecurrenceDays != nil:
		if err := validateRecurrence(p.RecurrenceDays, task.ParentTaskID); err != nil {
			return nil, err
		}
		next.RecurrenceDays = p.RecurrenceDays
		changed = append(changed, "recurrence")
	}
	if len(changed) == 0 {
		return task, nil
	}

	if task.ParentTaskID != nil && p.DueDate != nil {
		parent, err := s.store.GetTask(ctx, *task.ParentTaskID)
		if err != nil {
			return nil, errors.Wrap(err, "load parent task")
		}
		if next.DueDate.After(parent.DueDate) {
			return nil, errors.Wrapf(model.ErrValidation, "subtask due %s is after parent due %s",
				next.DueDate.Format(time.DateOnly), parent.DueDate.Format(time.DateOnly))
		}
	}

	if err := s.store.UpdateTaskFields(ctx, next); err != nil {
		return nil, errors.Wrap(err, "update task")
	}
	updated, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Type:      model.NotifyTaskUpdated,
		Actor:     actor,
		Task:      *updated,
		Assignees: updated.Assignees,
		Detail:    "changed " + strings.Join(changed, ", "),
	})
	return updated, nil
}

// ArchiveTask soft-deletes a task. Archived tasks reject further mutation.
func (s *Service) ArchiveTask(ctx context.Context, actorID, taskID string) (err error) {
	defer func(started time.Time) { recordMutation("archive", err, started) }(time.Now())

	actor, task, err := s.editable(ctx, "archive", actorID, taskID)
	if err != nil {
		return err
	}
	if err := s.store.ArchiveTask(ctx, taskID); err != nil {
		return errors.Wrap(err, "archive task")
	}
	task.Archived = true

	s.notify(ctx, notify.Event{
		Type:      model.NotifyTaskUpdated,
		Actor:     actor,
		Task:      *task,
		Assignees: task.Assignees,
		Detail:    "archived",
	})
	return nil
}

// AddAssignee assigns userID to the task and notifies the resulting
// assignee set.
func (s *Service) AddAssignee(ctx context.Context, actorID, taskID, userID string) (_ []string, err error) {
	defer func(started time.Time) { recordMutation("add_assignee", err, started) }(time.Now())

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeAddAssignee(ctx, actor, *task); err != nil {
		return nil, s.deny("add_assignee", actor, taskID, err)
	}
	subject, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load assignee")
	}

	assignees, err := s.store.AddAssignee(ctx, taskID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "add assignee")
	}
	task.Assignees = assignees

	s.notify(ctx, notify.Event{
		Type:      model.NotifyTaskAssigned,
		Actor:     actor,
		Task:      *task,
		Assignees: assignees,
		Subject:   subject,
	})
	return assignees, nil
}

// RemoveAssignee unassigns userID and notifies the remaining assignees.
func (s *Service) RemoveAssignee(ctx context.Context, actorID, taskID, userID string) (_ []string, err error) {
	defer func(started time.Time) { recordMutation("remove_assignee", err, started) }(time.Now())

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AuthorizeRemoveAssignee(ctx, actor, *task); err != nil {
		return nil, s.deny("remove_assignee", actor, taskID, err)
	}
	subject, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load assignee")
	}

	assignees, err := s.store.RemoveAssignee(ctx, taskID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "remove assignee")
	}
	task.Assignees = assignees

	s.notify(ctx, notify.Event{
		Type:      model.NotifyTaskUnassigned,
		Actor:     actor,
		Task:      *task,
		Assignees: assignees,
		Subject:   subject,
	})
	return assignees, nil
}

// AddComment posts body on a task the actor participates in.
func (s *Service) AddComment(ctx context.Context, actorID, taskID, body string) (_ *model.Comment, err error) {
	defer func(started time.Time) { recordMutation("add_comment", err, started) }(time.Now())

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.Wrap(model.ErrValidation, "comment body must not be empty")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	ok, err := s.policy.CanComment(ctx, actor, *task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.deny("add_comment", actor, taskID,
			errors.Wrapf(model.ErrUnauthorized, "user %s may not comment on task %s", actorID, taskID))
	}
	if task.Archived {
		return nil, errors.Wrapf(model.ErrConflict, "task %s is archived", taskID)
	}

	c := model.Comment{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create comment")
	}

	s.notify(ctx, notify.Event{
		Type:      model.NotifyCommentAdded,
		Actor:     actor,
		Task:      *task,
		Assignees: task.Assignees,
	})
	return &c, nil
}

// UpdateComment replaces the body of a comment. Only its author may edit
// it, whatever their role.
func (s *Service) UpdateComment(ctx context.Context, actorID, commentID, body string) (_ *model.Comment, err error) {
	defer func(started time.Time) { recordMutation("update_comment", err, started) }(time.Now())

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.Wrap(model.ErrValidation, "comment body must not be empty")
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != actor.ID {
		return nil, s.deny("update_comment", actor, existing.TaskID,
			errors.Wrapf(model.ErrUnauthorized, "comment %s belongs to %s", commentID, existing.AuthorID))
	}
	task, err := s.store.GetTask(ctx, existing.TaskID)
	if err != nil {
		return nil, err
	}
	if task.Archived {
		return nil, errors.Wrapf(model.ErrConflict, "task %s is archived", task.ID)
	}

	updated, err := s.store.UpdateCommentBody(ctx, commentID, body)
	if err != nil {
		return nil, errors.Wrap(err, "update comment")
	}

	s.notify(ctx, notify.Event{
		Type:      model.NotifyCommentEdited,
		Actor:     actor,
		Task:      *task,
		Assignees: task.Assignees,
	})
	return updated, nil
}

// NotifyOverdue sends one overdue notification per open task whose due date
// is before now's date, at most once per task per calendar day. It returns
// the number of tasks notified.
func (s *Service) NotifyOverdue(ctx context.Context, now time.Time) (int, error) {
	open, err := s.store.GetTasks(ctx, store.TaskFilter{OpenOnly: true})
	if err != nil {
		return 0, errors.Wrap(err, "list open tasks")
	}

	var notified int
	for _, t := range open {
		if !t.IsOverdue(now) {
			continue
		}
		first, err := s.store.MarkOverdueNotified(ctx, t.ID, now)
		if err != nil {
			return notified, errors.Wrap(err, "mark overdue")
		}
		if !first {
			continue
		}
		s.notify(ctx, notify.Event{
			Type:      model.NotifyTaskOverdue,
			Task:      t,
			Assignees: t.Assignees,
		})
		notified++
	}

	s.log.WithFields(logrus.Fields{
		"open":     len(open),
		"notified": notified,
	}).Info("overdue sweep finished")
	return notified, nil
}
