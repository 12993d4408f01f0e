// Package recurrence builds the successor of a completed recurring task.
package recurrence

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// Engine creates successor tasks. It holds no state; the store decides when
// it is consulted so a source never yields more than one successor.
type Engine struct {
	newID func() string
}

// NewEngine returns an Engine that assigns random UUIDs.
func NewEngine() *Engine {
	return &Engine{newID: func() string { return uuid.New().String() }}
}

// Qualifies reports whether completing task should spawn a successor.
func Qualifies(task model.Task) bool {
	return task.IsRecurring()
}

// Successor returns the next occurrence of source, or nil when source is not
// a recurring top-level task. The copy keeps title, description, priority,
// department, project, owner, assignees and interval, resets status to TO_DO
// and moves the due date forward by the interval.
func (e *Engine) Successor(source model.Task) (*model.Task, error) {
	if !Qualifies(source) {
		return nil, nil
	}
	if len(source.Assignees) == 0 {
		return nil, errors.Wrapf(model.ErrConflict, "task %s has no assignees to carry over", source.ID)
	}

	days := *source.RecurrenceDays
	return &model.Task{
		ID:             e.newID(),
		Title:          source.Title,
		Description:    source.Description,
		Priority:       source.Priority,
		DueDate:        model.DateOf(source.DueDate).AddDate(0, 0, days),
		Status:         model.StatusToDo,
		OwnerID:        source.OwnerID,
		DepartmentID:   source.DepartmentID,
		ProjectID:      source.ProjectID,
		Assignees:      slices.Clone(source.Assignees),
		RecurrenceDays: &days,
		RecurredFromID: &source.ID,
	}, nil
}

// Spawner adapts the engine to the store's status transition hook.
func (e *Engine) Spawner() store.SuccessorFunc {
	return e.Successor
}
