package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

const projectColumns = `id, name, description, department_id, creator_id,
	priority, status, archived, created_at, updated_at`

// CreateProject inserts a new project. Active project names are unique
// case-insensitively; a clash fails with ErrConflict.
func (s *SQLiteStore) CreateProject(ctx context.Context, project model.Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("project name must not be empty: %w", model.ErrValidation)
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = project.CreatedAt
	if project.Status == "" {
		project.Status = model.ProjectStatusActive
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var clash int
		err := tx.GetContext(ctx, &clash,
			"SELECT COUNT(*) FROM projects WHERE lower(name) = lower(?) AND archived = 0",
			project.Name)
		if err != nil {
			return fmt.Errorf("checking project name: %w", err)
		}
		if clash > 0 {
			return fmt.Errorf("project %q already exists: %w", project.Name, model.ErrConflict)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			project.ID, project.Name, project.Description, project.DepartmentID, project.CreatorID,
			project.Priority, project.Status, boolToInt(project.Archived), project.CreatedAt, project.UpdatedAt,
		)
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return fmt.Errorf("project %q already exists: %w", project.Name, model.ErrConflict)
			case isForeignKeyViolation(err):
				return fmt.Errorf("creating project %q: referenced record: %w", project.Name, model.ErrNotFound)
			}
			return fmt.Errorf("creating project: %w", err)
		}
		return nil
	})
}

// GetProject retrieves a single project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

// GetProjects retrieves projects ordered by name.
func (s *SQLiteStore) GetProjects(ctx context.Context, includeArchived bool) ([]model.Project, error) {
	query := "SELECT " + projectColumns + " FROM projects"
	if !includeArchived {
		query += " WHERE archived = 0"
	}
	query += " ORDER BY lower(name), id"

	var projects []model.Project
	if err := s.db.SelectContext(ctx, &projects, query); err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	return projects, nil
}

// ArchiveProject soft-deletes a project, releasing its name.
func (s *SQLiteStore) ArchiveProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE projects SET archived = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("archiving project %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// AddProjectGrant shares a project with another department. Granting the
// same department twice is a no-op.
func (s *SQLiteStore) AddProjectGrant(ctx context.Context, g model.AccessGrant) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_grants (project_id, department_id, granted_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, department_id) DO NOTHING`,
		g.ProjectID, g.DepartmentID, g.GrantedBy, g.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("granting project %s to %s: %w", g.ProjectID, g.DepartmentID, model.ErrNotFound)
		}
		return fmt.Errorf("granting project %s to %s: %w", g.ProjectID, g.DepartmentID, err)
	}
	return nil
}

// RemoveProjectGrant revokes a department's access to a project.
func (s *SQLiteStore) RemoveProjectGrant(ctx context.Context, projectID, departmentID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM project_grants WHERE project_id = ? AND department_id = ?",
		projectID, departmentID,
	)
	if err != nil {
		return fmt.Errorf("revoking project %s from %s: %w", projectID, departmentID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("grant of project %s to %s: %w", projectID, departmentID, model.ErrNotFound)
	}
	return nil
}

// GetProjectGrants lists the departments a project is shared with.
func (s *SQLiteStore) GetProjectGrants(ctx context.Context, projectID string) ([]model.AccessGrant, error) {
	var grants []model.AccessGrant
	err := s.db.SelectContext(ctx, &grants, `
		SELECT project_id, department_id, granted_by, created_at
		FROM project_grants WHERE project_id = ? ORDER BY department_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying grants for project %s: %w", projectID, err)
	}
	return grants, nil
}
