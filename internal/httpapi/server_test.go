package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/access"
	"github.com/nhle/tracker/internal/attachment"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/notify"
	"github.com/nhle/tracker/internal/projects"
	"github.com/nhle/tracker/internal/recurrence"
	"github.com/nhle/tracker/internal/tasks"
	"github.com/nhle/tracker/tests/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := testutil.NewTestStore(t)
	testutil.SeedOrg(t, s)

	logger, _ := logtest.NewNullLogger()
	policy := access.NewEvaluator(s, access.MustCapabilities())
	fanout := notify.NewFanout(s, logger)
	blobs, err := attachment.NewFSStore(t.TempDir())
	require.NoError(t, err)
	rules := attachment.Policy{MaxBytes: 1 << 10, Allowed: []string{"text/plain"}}

	return NewServer(Deps{
		Tasks:          tasks.NewService(s, policy, fanout, recurrence.NewEngine(), logger),
		Projects:       projects.NewService(s, policy, logger),
		Notifications:  fanout,
		Attachments:    attachment.NewService(s, policy, blobs, rules, logger),
		Hierarchy:      policy.Resolver(),
		MaxUploadBytes: rules.MaxBytes,
	}, logger)
}

func do(t *testing.T, srv http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func due(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format(time.DateOnly)
}

func createTask(t *testing.T, srv http.Handler, actor string, body map[string]any) model.Task {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/tasks", actor, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[model.Task](t, rec)
}

func TestRequiresActor(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/tasks", "nobody", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t)

	task := createTask(t, srv, "be_staff", map[string]any{
		"title":           "Rotate keys",
		"priority":        4,
		"due_date":        due(7),
		"assignees":       []string{"be_staff2"},
		"recurrence_days": 7,
	})
	require.Equal(t, "backend", task.DepartmentID)
	require.Equal(t, []string{"be_staff", "be_staff2"}, task.Assignees)

	rec := do(t, srv, http.MethodGet, "/api/tasks/"+task.ID, "sales_staff", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "unauthorized", decodeBody[errorBody](t, rec).Kind)

	rec = do(t, srv, http.MethodGet, "/api/tasks/"+task.ID, "eng_mgr", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPatch, "/api/tasks/"+task.ID, "be_staff", map[string]any{"priority": 11})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/status", "be_staff", map[string]any{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[statusResponse](t, rec)
	require.True(t, res.Changed)
	require.NotNil(t, res.Successor)
	require.Equal(t, model.StatusToDo, res.Successor.Status)
	require.Equal(t, task.DueDate.AddDate(0, 0, 7), res.Successor.DueDate)

	rec = do(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/status", "be_staff", map[string]any{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeBody[statusResponse](t, rec).Successor)

	rec = do(t, srv, http.MethodGet, "/api/tasks", "be_staff2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]model.Task](t, rec), 2)
}

func TestAssigneeRoutes(t *testing.T) {
	srv := newTestServer(t)
	task := createTask(t, srv, "be_staff", map[string]any{"title": "Solo", "priority": 3, "due_date": due(3)})

	rec := do(t, srv, http.MethodDelete, "/api/tasks/"+task.ID+"/assignees/be_staff", "be_mgr", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/assignees", "be_staff", map[string]any{"user_id": "db_staff"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"be_staff", "db_staff"}, decodeBody[assigneesResponse](t, rec).Assignees)

	rec = do(t, srv, http.MethodDelete, "/api/tasks/"+task.ID+"/assignees/db_staff", "be_staff", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/tasks/"+task.ID+"/assignees/db_staff", "be_mgr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"be_staff"}, decodeBody[assigneesResponse](t, rec).Assignees)

	rec = do(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/assignees", "be_staff", map[string]any{"uid": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommentsAndNotifications(t *testing.T) {
	srv := newTestServer(t)
	task := createTask(t, srv, "be_staff", map[string]any{
		"title": "Review", "priority": 5, "due_date": due(2), "assignees": []string{"db_staff"},
	})

	rec := do(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/comments", "db_staff", map[string]any{"body": "on it"})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decodeBody[model.Comment](t, rec)

	rec = do(t, srv, http.MethodPatch, "/api/comments/"+c.ID, "be_staff", map[string]any{"body": "hijack"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/tasks/"+task.ID+"/comments", "be_mgr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]model.Comment](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/notifications", "be_staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decodeBody[[]model.Notification](t, rec)
	require.Len(t, inbox, 1)
	require.Equal(t, model.NotifyCommentAdded, inbox[0].Type)

	rec = do(t, srv, http.MethodPost, "/api/notifications/read", "be_staff", map[string]any{"ids": []string{inbox[0].ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeBody[markReadResponse](t, rec).Marked)

	rec = do(t, srv, http.MethodPost, "/api/notifications/read", "be_staff", map[string]any{"ids": []string{inbox[0].ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, decodeBody[markReadResponse](t, rec).Marked)

	rec = do(t, srv, http.MethodGet, "/api/notifications", "be_staff", nil)
	require.Equal(t, "[]\n", rec.Body.String())
}

func TestProjectRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/projects", "sales_mgr", map[string]any{"name": "Launch"})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[model.Project](t, rec)

	rec = do(t, srv, http.MethodPost, "/api/projects", "be_mgr", map[string]any{"name": "launch"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/projects/"+p.ID, "fe_staff", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/projects/"+p.ID+"/grants", "sales_mgr", map[string]any{"department_id": "frontend"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/projects", "fe_staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]model.Project](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/projects/"+p.ID+"/grants", "fe_staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]model.AccessGrant](t, rec), 1)

	rec = do(t, srv, http.MethodDelete, "/api/projects/"+p.ID+"/grants/frontend", "sales_mgr", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/projects/"+p.ID+"/archive", "sales_mgr", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSubordinates(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/departments/eng/subordinates", "hr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[subordinatesResponse](t, rec)
	require.Equal(t, []string{"backend", "db", "frontend"}, got.Subordinates)

	rec = do(t, srv, http.MethodGet, "/api/departments/db/subordinates", "hr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeBody[subordinatesResponse](t, rec).Subordinates)

	rec = do(t, srv, http.MethodGet, "/api/departments/nowhere/subordinates", "hr", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachmentRoutes(t *testing.T) {
	srv := newTestServer(t)
	task := createTask(t, srv, "be_staff", map[string]any{"title": "Docs", "priority": 5, "due_date": due(4)})

	upload := func(actor, name string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/attachments", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set(ActorHeader, actor)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("be_staff", "notes.txt", []byte("release notes\n"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeBody[model.Attachment](t, rec)
	require.Equal(t, "notes.txt", a.FileName)

	rec = upload("be_staff", "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("sales_staff", "notes.txt", []byte("x"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/tasks/"+task.ID+"/attachments", "be_mgr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]model.Attachment](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/attachments/"+a.ID, "be_mgr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "release notes\n", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createTask(t, srv, "be_staff", map[string]any{"title": "Count me", "priority": 5, "due_date": due(1)})

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tracker_tasks_mutations_total")
}
