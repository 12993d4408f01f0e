package store

import (
	"context"
	"time"

	"github.com/nhle/tracker/internal/model"
)

// TaskFilter controls filtering and pagination for task queries.
type TaskFilter struct {
	Title           *string
	DepartmentIDs   []string
	ProjectID       *string
	OpenOnly        bool
	IncludeArchived bool
	Limit           int
	Offset          int
}

// SuccessorFunc builds the task to spawn when source completes, or returns
// nil when no successor is due. It runs inside the status transaction.
type SuccessorFunc func(source model.Task) (*model.Task, error)

// StatusTransition is the outcome of TransitionStatus.
type StatusTransition struct {
	Task      model.Task
	Previous  model.TaskStatus
	Changed   bool
	Successor *model.Task
}

// Store defines the persistence interface for the department directory,
// tasks, projects, comments, notifications and attachments.
type Store interface {
	// === Directory ===

	CreateDepartment(ctx context.Context, d model.Department) error
	GetDepartment(ctx context.Context, id string) (*model.Department, error)
	GetDepartments(ctx context.Context) ([]model.Department, error)
	UpsertUser(ctx context.Context, u model.UserProfile) error
	GetUser(ctx context.Context, id string) (*model.UserProfile, error)
	GetUsers(ctx context.Context, ids []string) ([]model.UserProfile, error)

	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTaskFields(ctx context.Context, task model.Task) error
	ArchiveTask(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, id string, status model.TaskStatus, spawn SuccessorFunc) (*StatusTransition, error)
	AddAssignee(ctx context.Context, taskID, userID string) ([]string, error)
	RemoveAssignee(ctx context.Context, taskID, userID string) ([]string, error)
	MarkOverdueNotified(ctx context.Context, taskID string, day time.Time) (bool, error)

	// === Comments ===

	CreateComment(ctx context.Context, c model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	UpdateCommentBody(ctx context.Context, id, body string) (*model.Comment, error)
	GetComments(ctx context.Context, taskID string) ([]model.Comment, error)

	// === Projects ===

	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjects(ctx context.Context, includeArchived bool) ([]model.Project, error)
	ArchiveProject(ctx context.Context, id string) error
	AddProjectGrant(ctx context.Context, g model.AccessGrant) error
	RemoveProjectGrant(ctx context.Context, projectID, departmentID string) error
	GetProjectGrants(ctx context.Context, projectID string) ([]model.AccessGrant, error)

	// === Notifications ===

	CreateNotifications(ctx context.Context, ns []model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	GetUnreadNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int, error)

	// === Attachments ===

	CreateAttachment(ctx context.Context, a model.Attachment) error
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)
	GetAttachments(ctx context.Context, taskID string) ([]model.Attachment, error)
}
