package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/tasks"
)

// date accepts "2006-01-02" or RFC 3339 and keeps only the calendar day.
type date struct{ time.Time }

func (d *date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return err
		}
	}
	d.Time = model.DateOf(t)
	return nil
}

type createTaskRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       int      `json:"priority"`
	DueDate        date     `json:"due_date"`
	DepartmentID   string   `json:"department_id"`
	ProjectID      *string  `json:"project_id"`
	ParentTaskID   *string  `json:"parent_task_id"`
	Assignees      []string `json:"assignees"`
	RecurrenceDays *int     `json:"recurrence_days"`
}

type updateTaskRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Priority        *int    `json:"priority"`
	DueDate         *date   `json:"due_date"`
	RecurrenceDays  *int    `json:"recurrence_days"`
	ClearRecurrence bool    `json:"clear_recurrence"`
}

type statusRequest struct {
	Status model.TaskStatus `json:"status"`
}

type statusResponse struct {
	Task      model.Task  `json:"task"`
	Changed   bool        `json:"changed"`
	Successor *model.Task `json:"successor,omitempty"`
}

type assigneeRequest struct {
	UserID string `json:"user_id"`
}

type assigneesResponse struct {
	Assignees []string `json:"assignees"`
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Tasks.ListVisible(r.Context(), actorID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !s.bind(w, r, &req) {
		return
	}
	task, err := s.deps.Tasks.Create(r.Context(), actorID(r), tasks.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		DueDate:        req.DueDate.Time,
		DepartmentID:   req.DepartmentID,
		ProjectID:      req.ProjectID,
		ParentTaskID:   req.ParentTaskID,
		Assignees:      req.Assignees,
		RecurrenceDays: req.RecurrenceDays,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.GetTask(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if !s.bind(w, r, &req) {
		return
	}
	p := tasks.Patch{
		Title:           req.Title,
		Description:     req.Description,
		Priority:        req.Priority,
		RecurrenceDays:  req.RecurrenceDays,
		ClearRecurrence: req.ClearRecurrence,
	}
	if req.DueDate != nil {
		p.DueDate = &req.DueDate.Time
	}
	task, err := s.deps.Tasks.UpdateTask(r.Context(), actorID(r), mux.Vars(r)["id"], p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.bind(w, r, &req) {
		return
	}
	res, err := s.deps.Tasks.UpdateStatus(r.Context(), actorID(r), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Task: res.Task, Changed: res.Changed, Successor: res.Successor})
}

func (s *Server) archiveTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Tasks.ArchiveTask(r.Context(), actorID(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addAssignee(w http.ResponseWriter, r *http.Request) {
	var req assigneeRequest
	if !s.bind(w, r, &req) {
		return
	}
	ids, err := s.deps.Tasks.AddAssignee(r.Context(), actorID(r), mux.Vars(r)["id"], req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assigneesResponse{Assignees: ids})
}

func (s *Server) removeAssignee(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ids, err := s.deps.Tasks.RemoveAssignee(r.Context(), actorID(r), vars["id"], vars["userID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assigneesResponse{Assignees: ids})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Tasks.Comments(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !s.bind(w, r, &req) {
		return
	}
	c, err := s.deps.Tasks.AddComment(r.Context(), actorID(r), mux.Vars(r)["id"], req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !s.bind(w, r, &req) {
		return
	}
	c, err := s.deps.Tasks.UpdateComment(r.Context(), actorID(r), mux.Vars(r)["id"], req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
