package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

const taskColumns = `id, title, description, priority, due_date, status,
	owner_id, department_id, project_id, parent_task_id,
	recurrence_days, successor_id, recurred_from_id, archived,
	created_at, updated_at, completed_at`

// CreateTask inserts a task together with its assignee set.
// Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return insertTask(ctx, tx, task)
	})
}

func insertTask(ctx context.Context, tx *sqlx.Tx, task model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Status == "" {
		task.Status = model.StatusToDo
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Priority, model.DateOf(task.DueDate), string(task.Status),
		task.OwnerID, task.DepartmentID, task.ProjectID, task.ParentTaskID,
		task.RecurrenceDays, task.SuccessorID, task.RecurredFromID, boolToInt(task.Archived),
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(), task.CompletedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("creating task %s: %w", task.ID, model.ErrConflict)
		case isForeignKeyViolation(err):
			return fmt.Errorf("creating task %s: referenced record: %w", task.ID, model.ErrNotFound)
		}
		return fmt.Errorf("creating task %s: %w", task.ID, err)
	}

	for _, userID := range task.Assignees {
		if err := insertAssignee(ctx, tx, task.ID, userID, task.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func insertAssignee(ctx context.Context, tx *sqlx.Tx, taskID, userID string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO task_assignees (task_id, user_id, assigned_at) VALUES (?, ?, ?)",
		taskID, userID, at.UTC(),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("user %s already assigned to task %s: %w", userID, taskID, model.ErrConflict)
		case isForeignKeyViolation(err):
			return fmt.Errorf("assigning user %s to task %s: %w", userID, taskID, model.ErrNotFound)
		}
		return fmt.Errorf("assigning user %s to task %s: %w", userID, taskID, err)
	}
	return nil
}

// GetTask retrieves a single task by ID, including its assignees.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id string) (*model.Task, error) {
	row := q.QueryRowxContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, "task", id)
	}

	assignees, err := loadAssignees(ctx, q, id)
	if err != nil {
		return nil, err
	}
	task.Assignees = assignees
	return &task, nil
}

func loadAssignees(ctx context.Context, q sqlx.QueryerContext, taskID string) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, q, &ids,
		"SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY assigned_at, rowid", taskID)
	if err != nil {
		return nil, fmt.Errorf("loading assignees for task %s: %w", taskID, err)
	}
	return ids, nil
}

// GetTasks retrieves tasks matching the filter, oldest first.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []any

	if filter.Title != nil {
		conditions = append(conditions, "title = ?")
		args = append(args, *filter.Title)
	}
	if len(filter.DepartmentIDs) > 0 {
		conditions = append(conditions,
			"department_id IN (?"+strings.Repeat(", ?", len(filter.DepartmentIDs)-1)+")")
		for _, id := range filter.DepartmentIDs {
			args = append(args, id)
		}
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.OpenOnly {
		conditions = append(conditions, "status <> ?")
		args = append(args, string(model.StatusCompleted))
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived = 0")
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range tasks {
		assignees, err := loadAssignees(ctx, s.db, tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].Assignees = assignees
	}
	return tasks, nil
}

// UpdateTaskFields writes title, description, priority, due date and
// recurrence interval. Ownership, department and parent never change here.
func (s *SQLiteStore) UpdateTaskFields(ctx context.Context, task model.Task) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getTask(ctx, tx, task.ID)
		if err != nil {
			return err
		}
		if current.Archived {
			return fmt.Errorf("task %s is archived: %w", task.ID, model.ErrConflict)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET
				title = ?, description = ?, priority = ?, due_date = ?,
				recurrence_days = ?, updated_at = ?
			WHERE id = ?`,
			task.Title, task.Description, task.Priority, model.DateOf(task.DueDate),
			task.RecurrenceDays, time.Now().UTC(),
			task.ID,
		)
		if err != nil {
			return fmt.Errorf("updating task %s: %w", task.ID, err)
		}
		return nil
	})
}

// ArchiveTask soft-deletes a task. Archiving twice is a no-op.
func (s *SQLiteStore) ArchiveTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET archived = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("archiving task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// TransitionStatus moves a task to status. When the new status is COMPLETED
// and the task has never spawned a successor, spawn is consulted and its
// result inserted in the same transaction, so at most one successor ever
// exists per source task.
func (s *SQLiteStore) TransitionStatus(
	ctx context.Context,
	id string,
	status model.TaskStatus,
	spawn SuccessorFunc,
) (*StatusTransition, error) {
	var out *StatusTransition

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		task, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if task.Archived {
			return fmt.Errorf("task %s is archived: %w", id, model.ErrConflict)
		}

		res := &StatusTransition{Task: *task, Previous: task.Status}
		if task.Status == status {
			out = res
			return nil
		}

		now := time.Now().UTC()
		var completedAt *time.Time
		if status == model.StatusCompleted {
			completedAt = &now
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, completed_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(status), completedAt, now, id, string(task.Status),
		)
		if err != nil {
			return fmt.Errorf("updating status of task %s: %w", id, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("task %s status changed concurrently: %w", id, model.ErrConflict)
		}

		res.Changed = true
		res.Task.Status = status
		res.Task.CompletedAt = completedAt
		res.Task.UpdatedAt = now

		if status == model.StatusCompleted && task.SuccessorID == nil && spawn != nil {
			succ, err := spawn(res.Task)
			if err != nil {
				return fmt.Errorf("building successor for task %s: %w", id, err)
			}
			if succ != nil {
				if succ.ID == "" {
					succ.ID = uuid.New().String()
				}
				succ.RecurredFromID = &res.Task.ID
				if err := insertTask(ctx, tx, *succ); err != nil {
					return fmt.Errorf("spawning successor of task %s: %w", id, err)
				}
				if _, err := tx.ExecContext(ctx,
					"UPDATE tasks SET successor_id = ? WHERE id = ?", succ.ID, id,
				); err != nil {
					return fmt.Errorf("linking successor of task %s: %w", id, err)
				}
				res.Task.SuccessorID = &succ.ID
				res.Successor = succ
			}
		}

		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddAssignee adds userID to the task and returns the resulting assignee
// set. Fails with ErrConflict when the task is archived, full, or already
// holds the user.
func (s *SQLiteStore) AddAssignee(ctx context.Context, taskID, userID string) ([]string, error) {
	var assignees []string

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		switch {
		case task.Archived:
			return fmt.Errorf("task %s is archived: %w", taskID, model.ErrConflict)
		case task.HasAssignee(userID):
			return fmt.Errorf("user %s already assigned to task %s: %w", userID, taskID, model.ErrConflict)
		case len(task.Assignees) >= model.MaxAssignees:
			return fmt.Errorf("task %s already has %d assignees: %w", taskID, len(task.Assignees), model.ErrConflict)
		}

		if err := insertAssignee(ctx, tx, taskID, userID, time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET updated_at = ? WHERE id = ?", time.Now().UTC(), taskID,
		); err != nil {
			return fmt.Errorf("touching task %s: %w", taskID, err)
		}
		assignees = append(task.Assignees, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignees, nil
}

// RemoveAssignee removes userID from the task and returns the resulting
// assignee set. Fails with ErrNotFound when the user is not assigned and
// ErrConflict when removal would leave the task without an assignee.
func (s *SQLiteStore) RemoveAssignee(ctx context.Context, taskID, userID string) ([]string, error) {
	var assignees []string

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		switch {
		case task.Archived:
			return fmt.Errorf("task %s is archived: %w", taskID, model.ErrConflict)
		case !task.HasAssignee(userID):
			return fmt.Errorf("user %s is not assigned to task %s: %w", userID, taskID, model.ErrNotFound)
		case len(task.Assignees) <= model.MinAssignees:
			return fmt.Errorf("task %s must keep at least %d assignee: %w", taskID, model.MinAssignees, model.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM task_assignees WHERE task_id = ? AND user_id = ?", taskID, userID,
		); err != nil {
			return fmt.Errorf("unassigning user %s from task %s: %w", userID, taskID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET updated_at = ? WHERE id = ?", time.Now().UTC(), taskID,
		); err != nil {
			return fmt.Errorf("touching task %s: %w", taskID, err)
		}
		assignees = slices.DeleteFunc(task.Assignees, func(id string) bool { return id == userID })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignees, nil
}

// MarkOverdueNotified records that the overdue reminder for day was sent.
// It reports false when the reminder for that day was already recorded.
func (s *SQLiteStore) MarkOverdueNotified(ctx context.Context, taskID string, day time.Time) (bool, error) {
	stamp := model.DateOf(day).Format(time.DateOnly)
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET overdue_notified_on = ?
		WHERE id = ? AND (overdue_notified_on IS NULL OR overdue_notified_on <> ?)`,
		stamp, taskID, stamp,
	)
	if err != nil {
		return false, fmt.Errorf("marking task %s overdue-notified: %w", taskID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// scanTask scans a task row selected with taskColumns.
func scanTask(r rowScanner) (model.Task, error) {
	var (
		task     model.Task
		status   string
		archived int
	)

	err := r.Scan(
		&task.ID, &task.Title, &task.Description, &task.Priority, &task.DueDate, &status,
		&task.OwnerID, &task.DepartmentID, &task.ProjectID, &task.ParentTaskID,
		&task.RecurrenceDays, &task.SuccessorID, &task.RecurredFromID, &archived,
		&task.CreatedAt, &task.UpdatedAt, &task.CompletedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	task.Status = model.TaskStatus(status)
	task.Archived = archived != 0
	task.DueDate = model.DateOf(task.DueDate)
	return task, nil
}
