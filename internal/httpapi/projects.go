package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nhle/tracker/internal/projects"
)

type createProjectRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DepartmentID string `json:"department_id"`
	Priority     int    `json:"priority"`
}

type grantRequest struct {
	DepartmentID string `json:"department_id"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Projects.VisibleForUser(r.Context(), actorID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !s.bind(w, r, &req) {
		return
	}
	p, err := s.deps.Projects.Create(r.Context(), actorID(r), projects.CreateInput(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Projects.Get(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) archiveProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Projects.Archive(r.Context(), actorID(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGrants(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Projects.Grants(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) grantAccess(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !s.bind(w, r, &req) {
		return
	}
	if err := s.deps.Projects.GrantAccess(r.Context(), actorID(r), mux.Vars(r)["id"], req.DepartmentID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revokeAccess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Projects.RevokeAccess(r.Context(), actorID(r), vars["id"], vars["departmentID"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
