package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"

	"github.com/nhle/tracker/internal/model"
)

// uploadSlack covers multipart framing around the file part.
const uploadSlack = 64 << 10

func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Attachments.List(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// uploadAttachment takes a multipart form with a single "file" part.
func (s *Server) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes+uploadSlack)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, errors.Wrapf(model.ErrValidation, "upload exceeds %d bytes", s.deps.MaxUploadBytes))
			return
		}
		s.fail(w, r, errors.Wrapf(model.ErrValidation, "read upload: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, errors.Wrap(err, "read upload"))
		return
	}
	a, err := s.deps.Attachments.Upload(r.Context(), actorID(r), mux.Vars(r)["id"], header.Filename, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	a, data, err := s.deps.Attachments.Open(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).WithField("attachment", a.ID).Debug("download interrupted")
	}
}
