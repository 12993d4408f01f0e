// Package httpapi exposes the tracker over JSON/HTTP. The acting user is
// taken from the X-User-ID header; authentication happens upstream.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/attachment"
	"github.com/nhle/tracker/internal/hierarchy"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/notify"
	"github.com/nhle/tracker/internal/projects"
	"github.com/nhle/tracker/internal/tasks"
)

// ActorHeader carries the acting user id.
const ActorHeader = "X-User-ID"

// Deps are the services the API serves. Hub and Attachments may be nil.
type Deps struct {
	Tasks         *tasks.Service
	Projects      *projects.Service
	Notifications *notify.Fanout
	Attachments   *attachment.Service
	Hierarchy     *hierarchy.Resolver
	Hub           http.Handler
	// MaxUploadBytes bounds attachment request bodies.
	MaxUploadBytes int64
}

// Server routes requests to Deps.
type Server struct {
	deps   Deps
	log    *logrus.Entry
	router *mux.Router
}

// NewServer builds the router.
func NewServer(deps Deps, logger *logrus.Logger) *Server {
	s := &Server{
		deps: deps,
		log:  logger.WithField("component", "httpapi"),
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if deps.Hub != nil {
		r.Handle("/ws", deps.Hub)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requireActor)

	api.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", s.updateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}/status", s.updateStatus).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/archive", s.archiveTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/assignees", s.addAssignee).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/assignees/{userID}", s.removeAssignee).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/comments", s.listComments).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/comments", s.addComment).Methods(http.MethodPost)
	api.HandleFunc("/comments/{id}", s.updateComment).Methods(http.MethodPatch)

	if deps.Attachments != nil {
		api.HandleFunc("/tasks/{id}/attachments", s.listAttachments).Methods(http.MethodGet)
		api.HandleFunc("/tasks/{id}/attachments", s.uploadAttachment).Methods(http.MethodPost)
		api.HandleFunc("/attachments/{id}", s.downloadAttachment).Methods(http.MethodGet)
	}

	api.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/archive", s.archiveProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/grants", s.listGrants).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/grants", s.grantAccess).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/grants/{departmentID}", s.revokeAccess).Methods(http.MethodDelete)

	api.HandleFunc("/departments/{id}/subordinates", s.subordinates).Methods(http.MethodGet)

	api.HandleFunc("/notifications", s.unreadNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read", s.markRead).Methods(http.MethodPost)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type actorKey struct{}

func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ActorHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+ActorHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, id)))
	})
}

func actorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			// the hub needs the raw writer to hijack the connection
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(started).String(),
		}).Debug("request")
	})
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch model.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusForbidden
	case "validation":
		return http.StatusBadRequest
	case "conflict":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: model.Kind(err)})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decode(r, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Kind: "validation"})
		return false
	}
	return true
}
