package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/tracker/internal/model"
)

const commentColumns = "id, task_id, author_id, body, created_at, edited_at"

// CreateComment inserts a comment on a task.
func (s *SQLiteStore) CreateComment(ctx context.Context, c model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.Body, c.CreatedAt, c.EditedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("creating comment on task %s: %w", c.TaskID, model.ErrNotFound)
		}
		return fmt.Errorf("creating comment on task %s: %w", c.TaskID, err)
	}
	return nil
}

// GetComment retrieves a single comment by ID.
func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := s.db.GetContext(ctx, &c, "SELECT "+commentColumns+" FROM comments WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "comment", id)
	}
	return &c, nil
}

// UpdateCommentBody replaces a comment's body and stamps edited_at.
func (s *SQLiteStore) UpdateCommentBody(ctx context.Context, id, body string) (*model.Comment, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE comments SET body = ?, edited_at = ? WHERE id = ?",
		body, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating comment %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("comment %s: %w", id, model.ErrNotFound)
	}
	return s.GetComment(ctx, id)
}

// GetComments lists a task's comments oldest first.
func (s *SQLiteStore) GetComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	var comments []model.Comment
	err := s.db.SelectContext(ctx, &comments,
		"SELECT "+commentColumns+" FROM comments WHERE task_id = ? ORDER BY created_at, rowid", taskID)
	if err != nil {
		return nil, fmt.Errorf("querying comments for task %s: %w", taskID, err)
	}
	return comments, nil
}
