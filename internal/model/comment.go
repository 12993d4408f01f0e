package model

import "time"

// Comment is a note left on a task by one of its participants.
type Comment struct {
	ID        string     `json:"id" db:"id"`
	TaskID    string     `json:"task_id" db:"task_id"`
	AuthorID  string     `json:"author_id" db:"author_id"`
	Body      string     `json:"body" db:"body"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty" db:"edited_at"`
}

// Attachment is the metadata of a file stored in the external blob store.
type Attachment struct {
	ID          string    `json:"id" db:"id"`
	TaskID      string    `json:"task_id" db:"task_id"`
	UploaderID  string    `json:"uploader_id" db:"uploader_id"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	StorageKey  string    `json:"storage_key" db:"storage_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
