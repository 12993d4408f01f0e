package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
)

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func recurringTask() model.Task {
	return model.Task{
		ID:             "src",
		Title:          "Rotate keys",
		Description:    "quarterly",
		Priority:       7,
		DueDate:        time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:         model.StatusCompleted,
		OwnerID:        "owner",
		DepartmentID:   "ops",
		ProjectID:      strPtr("proj"),
		Assignees:      []string{"owner", "helper"},
		RecurrenceDays: intPtr(7),
	}
}

func TestSuccessorCopiesSource(t *testing.T) {
	e := NewEngine()
	src := recurringTask()

	next, err := e.Successor(src)
	require.NoError(t, err)
	require.NotNil(t, next)

	require.NotEmpty(t, next.ID)
	require.NotEqual(t, src.ID, next.ID)
	require.Equal(t, model.StatusToDo, next.Status)
	require.Equal(t, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC), next.DueDate)
	require.Equal(t, src.Assignees, next.Assignees)
	require.Equal(t, 7, *next.RecurrenceDays)
	require.Equal(t, "owner", next.OwnerID)
	require.Equal(t, "ops", next.DepartmentID)
	require.Equal(t, "proj", *next.ProjectID)
	require.Equal(t, "Rotate keys", next.Title)
	require.Equal(t, 7, next.Priority)
	require.Equal(t, "src", *next.RecurredFromID)
	require.Nil(t, next.CompletedAt)

	src.Assignees[0] = "changed"
	require.Equal(t, "owner", next.Assignees[0])
}

func TestSuccessorSkipsNonQualifying(t *testing.T) {
	e := NewEngine()

	plain := recurringTask()
	plain.RecurrenceDays = nil
	next, err := e.Successor(plain)
	require.NoError(t, err)
	require.Nil(t, next)

	sub := recurringTask()
	sub.ParentTaskID = strPtr("parent")
	next, err = e.Successor(sub)
	require.NoError(t, err)
	require.Nil(t, next)

	zero := recurringTask()
	zero.RecurrenceDays = intPtr(0)
	require.False(t, Qualifies(zero))
}

func TestSuccessorAcrossMonthEnd(t *testing.T) {
	src := recurringTask()
	src.DueDate = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	src.RecurrenceDays = intPtr(30)

	next, err := NewEngine().Successor(src)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), next.DueDate)
}
