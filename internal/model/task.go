package model

import (
	"slices"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "TO_DO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusBlocked    TaskStatus = "BLOCKED"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusBlocked, StatusCompleted:
		return true
	}
	return false
}

// Task bounds.
const (
	MinPriority  = 1
	MaxPriority  = 10
	MinAssignees = 1
	MaxAssignees = 5
)

// Task is a unit of departmental work. OwnerID and ProjectID are fixed at
// creation; the store never writes them after the initial insert.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title"`

	// Description is the full body text.
	Description string `json:"description"`

	// Priority ranges from MinPriority to MaxPriority.
	Priority int `json:"priority"`

	// DueDate is a calendar date stored at UTC midnight.
	DueDate time.Time `json:"due_date"`

	Status TaskStatus `json:"status"`

	// OwnerID is the creating user.
	OwnerID string `json:"owner_id"`

	// DepartmentID is the task's home department.
	DepartmentID string `json:"department_id"`

	ProjectID    *string `json:"project_id,omitempty"`
	ParentTaskID *string `json:"parent_task_id,omitempty"`

	// Assignees holds between MinAssignees and MaxAssignees user ids.
	Assignees []string `json:"assignees"`

	// RecurrenceDays is only ever set on tasks without a parent.
	RecurrenceDays *int `json:"recurrence_days,omitempty"`

	// SuccessorID points at the task spawned when this one completed.
	SuccessorID *string `json:"successor_id,omitempty"`

	// RecurredFromID points back at the completed task this one was spawned from.
	RecurredFromID *string `json:"recurred_from_id,omitempty"`

	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsSubtask reports whether the task has a parent task.
func (t Task) IsSubtask() bool {
	return t.ParentTaskID != nil
}

// IsRecurring reports whether completing the task should spawn a successor.
func (t Task) IsRecurring() bool {
	return !t.IsSubtask() && t.RecurrenceDays != nil && *t.RecurrenceDays > 0
}

// HasAssignee reports whether userID is currently assigned.
func (t Task) HasAssignee(userID string) bool {
	return slices.Contains(t.Assignees, userID)
}

// IsOverdue reports whether the due date has passed relative to now and the
// task is still open.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.Archived && t.Status != StatusCompleted && t.DueDate.Before(DateOf(now))
}

// DateOf truncates ts to its UTC calendar date.
func DateOf(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
