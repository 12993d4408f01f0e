package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

const userColumns = "id, name, email, role, is_hr_admin, department_id, created_at"

// CreateDepartment inserts a department. The parent reference is not
// verified so a malformed hierarchy can still be loaded and walked.
func (s *SQLiteStore) CreateDepartment(ctx context.Context, d model.Department) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("department id must not be empty: %w", model.ErrValidation)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, name, parent_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id`,
		d.ID, d.Name, d.ParentID, d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating department %s: %w", d.ID, err)
	}
	return nil
}

// GetDepartment retrieves a single department by ID.
func (s *SQLiteStore) GetDepartment(ctx context.Context, id string) (*model.Department, error) {
	var d model.Department
	err := s.db.GetContext(ctx, &d,
		"SELECT id, name, parent_id, created_at FROM departments WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "department", id)
	}
	return &d, nil
}

// GetDepartments retrieves every department ordered by ID.
func (s *SQLiteStore) GetDepartments(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := s.db.SelectContext(ctx, &depts,
		"SELECT id, name, parent_id, created_at FROM departments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying departments: %w", err)
	}
	return depts, nil
}

// UpsertUser inserts a user profile or replaces the existing one.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u model.UserProfile) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id must not be empty: %w", model.ErrValidation)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("user %s has invalid role %q: %w", u.ID, u.Role, model.ErrValidation)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, role = excluded.role,
			is_hr_admin = excluded.is_hr_admin, department_id = excluded.department_id`,
		u.ID, u.Name, u.Email, string(u.Role), boolToInt(u.IsHRAdmin), u.DepartmentID, u.CreatedAt.UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s references unknown department %s: %w", u.ID, u.DepartmentID, model.ErrNotFound)
		}
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser retrieves a single user profile by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	var u model.UserProfile
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// GetUsers retrieves the profiles for ids. Unknown IDs are skipped.
func (s *SQLiteStore) GetUsers(ctx context.Context, ids []string) ([]model.UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("building user query: %w", err)
	}

	var users []model.UserProfile
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}
