// Package app wires the tracker services from configuration.
package app

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/access"
	"github.com/nhle/tracker/internal/attachment"
	"github.com/nhle/tracker/internal/httpapi"
	"github.com/nhle/tracker/internal/logging"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/notify"
	"github.com/nhle/tracker/internal/projects"
	"github.com/nhle/tracker/internal/realtime"
	"github.com/nhle/tracker/internal/recurrence"
	"github.com/nhle/tracker/internal/store"
	"github.com/nhle/tracker/internal/tasks"
)

// App holds one instance of every service, sharing a store and logger.
type App struct {
	Config *model.AppConfig
	Logger *logrus.Logger

	Store       *store.SQLiteStore
	Policy      *access.Evaluator
	Fanout      *notify.Fanout
	Hub         *realtime.Hub
	Tasks       *tasks.Service
	Projects    *projects.Service
	Attachments *attachment.Service

	logCloser io.Closer
}

// New opens the store and builds the services. The caller must Close it.
func New(cfg *model.AppConfig) (*App, error) {
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "init logging")
	}
	a, err := build(cfg, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	a.logCloser = logCloser
	return a, nil
}

func build(cfg *model.AppConfig, logger *logrus.Logger) (*App, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	caps, err := access.NewCapabilities()
	if err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "load capabilities")
	}
	caps.SetLogger(logger)
	policy := access.NewEvaluator(st, caps)

	hub := realtime.NewHub(logger)
	fanout := notify.NewFanout(st, logger,
		notify.WithUnreadLimit(cfg.Notifications.UnreadLimit),
		notify.WithDispatchers(hub),
	)
	if cfg.Notifications.EmailFrom != "" {
		outbox, err := notify.NewOutboxMailer(cfg.Notifications.OutboxDir)
		if err != nil {
			_ = st.Close()
			return nil, errors.Wrap(err, "open outbox")
		}
		fanout.AddDispatcher(notify.NewEmailDispatcher(cfg.Notifications.EmailFrom, st, outbox))
	}

	blobs, err := attachment.NewFSStore(cfg.Attachments.Dir)
	if err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "open attachment store")
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       st,
		Policy:      policy,
		Fanout:      fanout,
		Hub:         hub,
		Tasks:       tasks.NewService(st, policy, fanout, recurrence.NewEngine(), logger),
		Projects:    projects.NewService(st, policy, logger),
		Attachments: attachment.NewService(st, policy, blobs, attachment.PolicyFromConfig(cfg.Attachments), logger),
	}, nil
}

// Handler returns the HTTP API including /ws and /metrics.
func (a *App) Handler() http.Handler {
	return httpapi.NewServer(httpapi.Deps{
		Tasks:          a.Tasks,
		Projects:       a.Projects,
		Notifications:  a.Fanout,
		Attachments:    a.Attachments,
		Hierarchy:      a.Policy.Resolver(),
		Hub:            a.Hub,
		MaxUploadBytes: a.Config.Attachments.MaxBytes,
	}, a.Logger)
}

// Close shuts the hub, store and log output.
func (a *App) Close() error {
	a.Hub.Close()
	err := a.Store.Close()
	if a.logCloser != nil {
		if cerr := a.logCloser.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
