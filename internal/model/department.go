package model

import "time"

// Department is a node in the organization tree. ParentID is nil for roots.
type Department struct {
	ID        string    `json:"id" db:"id" yaml:"id"`
	Name      string    `json:"name" db:"name" yaml:"name"`
	ParentID  *string   `json:"parent_id,omitempty" db:"parent_id" yaml:"parent"`
	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// Role is the organizational authority level of a user.
type Role string

const (
	RoleStaff   Role = "STAFF"
	RoleManager Role = "MANAGER"
	RoleHRAdmin Role = "HR_ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleManager, RoleHRAdmin:
		return true
	}
	return false
}

// UserProfile is a directory entry for a user.
type UserProfile struct {
	ID           string    `json:"id" db:"id" yaml:"id"`
	Name         string    `json:"name" db:"name" yaml:"name"`
	Email        string    `json:"email" db:"email" yaml:"email"`
	Role         Role      `json:"role" db:"role" yaml:"role"`
	IsHRAdmin    bool      `json:"is_hr_admin" db:"is_hr_admin" yaml:"is_hr_admin"`
	DepartmentID string    `json:"department_id" db:"department_id" yaml:"department"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// EffectiveRole folds the HR admin flag into the role: a STAFF or MANAGER
// carrying the flag acts as HR_ADMIN.
func (u UserProfile) EffectiveRole() Role {
	if u.IsHRAdmin {
		return RoleHRAdmin
	}
	return u.Role
}
