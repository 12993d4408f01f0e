package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
)

const seedDoc = `
departments:
  - id: eng
    name: Engineering
  - id: backend
    name: Backend
    parent: eng
  - id: db
    name: Databases
    parent: backend
users:
  - id: erin
    name: Erin
    role: MANAGER
    department: eng
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := model.DefaultAppConfig()
	cfg.Database.Path = filepath.Join(dir, "tracker.db")
	cfg.Log.File = filepath.Join(dir, "tracker.log")
	cfg.Attachments.Dir = filepath.Join(dir, "blobs")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, model.SaveConfig(path, cfg))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seedDoc), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestCLI(t *testing.T) {
	cfgPath := writeConfig(t)
	seedPath := filepath.Join(filepath.Dir(cfgPath), "seed.yaml")

	require.Contains(t, run(t, "--config", cfgPath, "migrate"), "schema at version 2")
	require.Contains(t, run(t, "--config", cfgPath, "seed", seedPath), "seeded 3 departments and 1 users")

	out := run(t, "--config", cfgPath, "subordinates", "eng")
	require.Contains(t, out, "backend")
	require.Contains(t, out, "db")

	require.Contains(t, run(t, "--config", cfgPath, "subordinates", "db"), "(none)")
	require.Contains(t, run(t, "--config", cfgPath, "tasks", "erin"), "Tasks visible to erin (0)")
	require.Contains(t, run(t, "--config", cfgPath, "notifications", "erin", "--mark-read"), "Unread for erin (0)")
	require.Contains(t, run(t, "--config", cfgPath, "overdue", "--as-of", time.Now().UTC().Format(time.DateOnly)), "0 overdue")
}

func TestCLIErrors(t *testing.T) {
	cfgPath := writeConfig(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "subordinates", "nowhere"})
	require.ErrorIs(t, cmd.Execute(), model.ErrNotFound)

	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "overdue", "--as-of", "soon"})
	require.Error(t, cmd.Execute())
}

func TestRenderTasks(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderTasks(&buf, "bo", []model.Task{
		{ID: "t1", Title: "Late", Priority: 9, Status: model.StatusToDo, DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "t2", Title: "Done", Priority: 2, Status: model.StatusCompleted, DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}, now)

	out := buf.String()
	require.Contains(t, out, "Tasks visible to bo (2)")
	require.Contains(t, out, "Late")
	require.Contains(t, out, "2026-05-01")
	require.Contains(t, out, "t2")
}
