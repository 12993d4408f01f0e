package model

import "time"

// NotificationType identifies the event that produced a notification.
type NotificationType string

const (
	NotifyTaskAssigned   NotificationType = "TASK_ASSIGNED"
	NotifyTaskUnassigned NotificationType = "TASK_UNASSIGNED"
	NotifyCommentAdded   NotificationType = "COMMENT_ADDED"
	NotifyCommentEdited  NotificationType = "COMMENT_EDITED"
	NotifyTaskUpdated    NotificationType = "TASK_UPDATED"
	NotifyTaskOverdue    NotificationType = "TASK_OVERDUE"
)

// Notification is an alert surfaced to a single recipient about activity on
// a task. Only Read (and ReadAt) ever change after insert.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// RecipientID is the user who receives this notification.
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	// TaskID links this notification to the originating task, if any.
	TaskID *string `json:"task_id,omitempty" db:"task_id"`

	Type NotificationType `json:"type" db:"type"`

	// Title and Message are the human-readable texts.
	Title   string `json:"title" db:"title"`
	Message string `json:"message" db:"message"`

	// Read indicates whether the recipient has seen this notification.
	Read   bool       `json:"read" db:"read"`
	ReadAt *time.Time `json:"read_at,omitempty" db:"read_at"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
