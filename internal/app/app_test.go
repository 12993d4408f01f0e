package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/notify"
	"github.com/nhle/tracker/internal/tasks"
	"github.com/nhle/tracker/tests/testutil"
)

func testConfig(t *testing.T) *model.AppConfig {
	dir := t.TempDir()
	cfg := model.DefaultAppConfig()
	cfg.Database.Path = filepath.Join(dir, "tracker.db")
	cfg.Log.File = filepath.Join(dir, "logs", "tracker.log")
	cfg.Attachments.Dir = filepath.Join(dir, "blobs")
	cfg.Notifications.OutboxDir = filepath.Join(dir, "outbox")
	cfg.Notifications.EmailFrom = "tracker@example.com"
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	testutil.SeedOrg(t, a.Store)

	task, err := a.Tasks.Create(ctx, "be_mgr", tasks.CreateInput{
		Title:     "Wire check",
		Priority:  5,
		DueDate:   testutil.NewTask("x", "be_mgr", "backend").DueDate,
		Assignees: []string{"be_staff"},
	})
	require.NoError(t, err)

	unread, err := a.Fanout.GetUnread(ctx, "be_staff")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, task.ID, *unread[0].TaskID)

	entries, err := os.ReadDir(cfg.Notifications.OutboxDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID, nil)
	req.Header.Set("X-User-ID", "be_staff")
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRejectsBadLogConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Format = "xml"
	_, err := New(cfg)
	require.Error(t, err)
}

var _ notify.Dispatcher = (*notify.EmailDispatcher)(nil)
