package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/tracker/internal/model"
)

const attachmentColumns = "id, task_id, uploader_id, file_name, content_type, size_bytes, storage_key, created_at"

// CreateAttachment records attachment metadata. The blob itself lives in
// the attachment BlobStore under StorageKey.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, a model.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (`+attachmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.UploaderID, a.FileName, a.ContentType, a.SizeBytes, a.StorageKey, a.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("attaching %q to task %s: %w", a.FileName, a.TaskID, model.ErrNotFound)
		}
		return fmt.Errorf("attaching %q to task %s: %w", a.FileName, a.TaskID, err)
	}
	return nil
}

// GetAttachment returns attachment metadata by id.
func (s *SQLiteStore) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	var a model.Attachment
	err := s.db.GetContext(ctx, &a, "SELECT "+attachmentColumns+" FROM attachments WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "attachment", id)
	}
	return &a, nil
}

// GetAttachments lists a task's attachments oldest first.
func (s *SQLiteStore) GetAttachments(ctx context.Context, taskID string) ([]model.Attachment, error) {
	var out []model.Attachment
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+attachmentColumns+" FROM attachments WHERE task_id = ? ORDER BY created_at, rowid", taskID)
	if err != nil {
		return nil, fmt.Errorf("querying attachments for task %s: %w", taskID, err)
	}
	return out, nil
}
