package model

import "time"

// Project groups tasks under a home department.
type Project struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description" db:"description"`
	DepartmentID string    `json:"department_id" db:"department_id"`
	CreatorID    string    `json:"creator_id" db:"creator_id"`
	Priority     int       `json:"priority" db:"priority"`
	Status       string    `json:"status" db:"status"`
	Archived     bool      `json:"archived" db:"archived"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Project status constants.
const (
	ProjectStatusActive    = "ACTIVE"
	ProjectStatusCompleted = "COMPLETED"
)

// AccessGrant makes a project visible to a department other than its home.
type AccessGrant struct {
	ProjectID    string    `json:"project_id" db:"project_id"`
	DepartmentID string    `json:"department_id" db:"department_id"`
	GrantedBy    string    `json:"granted_by" db:"granted_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
