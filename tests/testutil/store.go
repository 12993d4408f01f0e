package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Org is the directory loaded by SeedOrg:
//
//	eng (eng_mgr, eng_staff)
//	├── backend (be_mgr, be_staff, be_staff2)
//	│   └── db (db_staff)
//	└── frontend (fe_staff)
//	sales (sales_mgr, sales_staff)
//
// plus hr, an HR admin homed in sales.
var Org = struct {
	Departments []model.Department
	Users       []model.UserProfile
}{
	Departments: []model.Department{
		{ID: "eng", Name: "Engineering"},
		{ID: "backend", Name: "Backend", ParentID: ptr("eng")},
		{ID: "db", Name: "Databases", ParentID: ptr("backend")},
		{ID: "frontend", Name: "Frontend", ParentID: ptr("eng")},
		{ID: "sales", Name: "Sales"},
	},
	Users: []model.UserProfile{
		{ID: "eng_mgr", Name: "Erin", Email: "erin@example.com", Role: model.RoleManager, DepartmentID: "eng"},
		{ID: "eng_staff", Name: "Eli", Email: "eli@example.com", Role: model.RoleStaff, DepartmentID: "eng"},
		{ID: "be_mgr", Name: "Bo", Email: "bo@example.com", Role: model.RoleManager, DepartmentID: "backend"},
		{ID: "be_staff", Name: "Bea", Email: "bea@example.com", Role: model.RoleStaff, DepartmentID: "backend"},
		{ID: "be_staff2", Name: "Ben", Email: "ben@example.com", Role: model.RoleStaff, DepartmentID: "backend"},
		{ID: "db_staff", Name: "Dee", Email: "dee@example.com", Role: model.RoleStaff, DepartmentID: "db"},
		{ID: "fe_staff", Name: "Fay", Email: "fay@example.com", Role: model.RoleStaff, DepartmentID: "frontend"},
		{ID: "sales_mgr", Name: "Sam", Email: "sam@example.com", Role: model.RoleManager, DepartmentID: "sales"},
		{ID: "sales_staff", Name: "Sol", Email: "sol@example.com", Role: model.RoleStaff, DepartmentID: "sales"},
		{ID: "hr", Name: "Hannah", Email: "hannah@example.com", Role: model.RoleHRAdmin, DepartmentID: "sales"},
	},
}

// SeedOrg loads Org into s.
func SeedOrg(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	for _, d := range Org.Departments {
		if err := s.CreateDepartment(ctx, d); err != nil {
			t.Fatalf("seeding department %s: %v", d.ID, err)
		}
	}
	for _, u := range Org.Users {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("seeding user %s: %v", u.ID, err)
		}
	}
}

// NewTask returns a valid task owned by ownerID in deptID and assigned to
// assignees, due one week from today.
func NewTask(title, ownerID, deptID string, assignees ...string) model.Task {
	if len(assignees) == 0 {
		assignees = []string{ownerID}
	}
	return model.Task{
		Title:        title,
		Priority:     5,
		DueDate:      model.DateOf(time.Now()).AddDate(0, 0, 7),
		Status:       model.StatusToDo,
		OwnerID:      ownerID,
		DepartmentID: deptID,
		Assignees:    assignees,
	}
}

func ptr(s string) *string { return &s }
