// Package seed loads a department and user directory from YAML.
package seed

import (
	"context"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/nhle/tracker/internal/model"
)

// Directory is the directory writer Apply needs.
type Directory interface {
	CreateDepartment(ctx context.Context, d model.Department) error
	UpsertUser(ctx context.Context, u model.UserProfile) error
}

// File is the seed document.
//
//	departments:
//	  - id: eng
//	    name: Engineering
//	  - id: backend
//	    name: Backend
//	    parent: eng
//	users:
//	  - id: bo
//	    name: Bo
//	    email: bo@example.com
//	    role: MANAGER
//	    department: backend
type File struct {
	Departments []model.Department  `yaml:"departments"`
	Users       []model.UserProfile `yaml:"users"`
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(model.ErrValidation, "decode seed: %v", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Parse(data)
}

// Validate checks ids, roles and references. A parent or department may
// also name a department that already exists in the store.
func (f *File) Validate() error {
	depts := make(map[string]struct{}, len(f.Departments))
	for i, d := range f.Departments {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return errors.Wrapf(model.ErrValidation, "department #%d has no id", i+1)
		}
		if _, dup := depts[id]; dup {
			return errors.Wrapf(model.ErrValidation, "department %s listed twice", id)
		}
		if d.ParentID != nil && *d.ParentID == id {
			return errors.Wrapf(model.ErrValidation, "department %s is its own parent", id)
		}
		depts[id] = struct{}{}
	}

	users := make(map[string]struct{}, len(f.Users))
	for i, u := range f.Users {
		id := strings.TrimSpace(u.ID)
		if id == "" {
			return errors.Wrapf(model.ErrValidation, "user #%d has no id", i+1)
		}
		if _, dup := users[id]; dup {
			return errors.Wrapf(model.ErrValidation, "user %s listed twice", id)
		}
		if !u.Role.Valid() {
			return errors.Wrapf(model.ErrValidation, "user %s has unknown role %q", id, u.Role)
		}
		if strings.TrimSpace(u.DepartmentID) == "" {
			return errors.Wrapf(model.ErrValidation, "user %s has no department", id)
		}
		users[id] = struct{}{}
	}
	return nil
}

// Result counts what Apply wrote.
type Result struct {
	Departments int
	Users       int
}

// Apply writes departments, then users. Existing rows with the same id are
// replaced.
func Apply(ctx context.Context, dir Directory, f *File) (Result, error) {
	var res Result
	for _, d := range f.Departments {
		if err := dir.CreateDepartment(ctx, d); err != nil {
			return res, errors.Wrapf(err, "seed department %s", d.ID)
		}
		res.Departments++
	}
	for _, u := range f.Users {
		if err := dir.UpsertUser(ctx, u); err != nil {
			return res, errors.Wrapf(err, "seed user %s", u.ID)
		}
		res.Users++
	}
	return res, nil
}
