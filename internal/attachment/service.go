package attachment

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/access"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// Service uploads and serves task attachments.
type Service struct {
	store  store.Store
	policy *access.Evaluator
	blobs  BlobStore
	rules  Policy
	log    *logrus.Entry
	now    func() time.Time
}

// NewService wires a Service.
func NewService(st store.Store, policy *access.Evaluator, blobs BlobStore, rules Policy, logger *logrus.Logger) *Service {
	return &Service{
		store:  st,
		policy: policy,
		blobs:  blobs,
		rules:  rules,
		log:    logger.WithField("component", "attachment"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// visibleTask loads the actor and a task they can see.
func (s *Service) visibleTask(ctx context.Context, actorID, taskID string) (model.UserProfile, *model.Task, error) {
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return model.UserProfile{}, nil, errors.Wrap(err, "load actor")
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return *actor, nil, err
	}
	ok, err := s.policy.IsTaskVisible(ctx, *actor, *task)
	if err != nil {
		return *actor, nil, err
	}
	if !ok {
		return *actor, nil, errors.Wrapf(model.ErrUnauthorized, "task %s is not visible to %s", taskID, actorID)
	}
	return *actor, task, nil
}

// Upload validates data, writes it to the blob store and records its metadata.
func (s *Service) Upload(ctx context.Context, actorID, taskID, fileName string, data []byte) (*model.Attachment, error) {
	actor, task, err := s.visibleTask(ctx, actorID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Archived {
		return nil, errors.Wrapf(model.ErrConflict, "task %s is archived", taskID)
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, errors.Wrap(model.ErrValidation, "file name must not be empty")
	}
	mt, err := s.rules.Check(data)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	a := model.Attachment{
		ID:          id,
		TaskID:      task.ID,
		UploaderID:  actor.ID,
		FileName:    name,
		ContentType: mt.String(),
		SizeBytes:   int64(len(data)),
		StorageKey:  task.ID + "/" + id + mt.Extension(),
		CreatedAt:   s.now(),
	}
	if err := s.blobs.Put(ctx, a.StorageKey, data); err != nil {
		return nil, errors.Wrap(err, "store blob")
	}
	if err := s.store.CreateAttachment(ctx, a); err != nil {
		if derr := s.blobs.Delete(ctx, a.StorageKey); derr != nil {
			s.log.WithError(derr).WithField("key", a.StorageKey).Warn("orphaned blob")
		}
		return nil, errors.Wrap(err, "record attachment")
	}

	s.log.WithFields(logrus.Fields{
		"task":  task.ID,
		"actor": actor.ID,
		"type":  a.ContentType,
		"size":  a.SizeBytes,
	}).Info("attachment uploaded")
	return &a, nil
}

// List returns a visible task's attachments, oldest first.
func (s *Service) List(ctx context.Context, actorID, taskID string) ([]model.Attachment, error) {
	if _, _, err := s.visibleTask(ctx, actorID, taskID); err != nil {
		return nil, err
	}
	out, err := s.store.GetAttachments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Attachment{}
	}
	return out, nil
}

// Open returns an attachment's metadata and bytes.
func (s *Service) Open(ctx context.Context, actorID, attachmentID string) (*model.Attachment, []byte, error) {
	a, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := s.visibleTask(ctx, actorID, a.TaskID); err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, a.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return a, data, nil
}
