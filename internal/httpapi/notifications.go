package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"

	"github.com/nhle/tracker/internal/model"
)

type markReadRequest struct {
	IDs []string `json:"ids"`
}

type markReadResponse struct {
	Marked int `json:"marked"`
}

type subordinatesResponse struct {
	Department   string   `json:"department"`
	Subordinates []string `json:"subordinates"`
}

func (s *Server) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Notifications.GetUnread(r.Context(), actorID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !s.bind(w, r, &req) {
		return
	}
	n, err := s.deps.Notifications.MarkRead(r.Context(), actorID(r), req.IDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Marked: n})
}

func (s *Server) subordinates(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tree, err := s.deps.Hierarchy.Tree(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !tree.Has(id) {
		s.fail(w, r, errors.Wrapf(model.ErrNotFound, "department %s", id))
		return
	}
	writeJSON(w, http.StatusOK, subordinatesResponse{Department: id, Subordinates: tree.Subordinates(id).Sorted()})
}
