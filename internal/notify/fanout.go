// Package notify persists task notifications for assignees and forwards
// them to best-effort delivery channels.
package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/model"
)

// DefaultUnreadLimit caps GetUnread when no limit is configured.
const DefaultUnreadLimit = 10

// Store is the notification persistence the fanout needs.
type Store interface {
	CreateNotifications(ctx context.Context, ns []model.Notification) error
	GetUnreadNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int, error)
}

// Dispatcher delivers a persisted notification over a side channel.
// Failures are logged and never roll back the notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, n model.Notification) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// Event describes something that happened to a task.
type Event struct {
	Type model.NotificationType
	// Actor is the user who caused the event. Zero for system events.
	Actor model.UserProfile
	Task  model.Task
	// Assignees is the task's assignee set after the event.
	Assignees []string
	// Subject is the user added or removed by an assignment event.
	Subject *model.UserProfile
	// Detail is appended to update messages, e.g. "status changed to COMPLETED".
	Detail string
}

// Fanout turns events into one notification per recipient.
type Fanout struct {
	store       Store
	dispatchers []Dispatcher
	unreadLimit int
	now         func() time.Time
	log         *logrus.Entry
}

// Option configures a Fanout.
type Option func(*Fanout)

// WithDispatchers registers delivery channels.
func WithDispatchers(ds ...Dispatcher) Option {
	return func(f *Fanout) { f.dispatchers = append(f.dispatchers, ds...) }
}

// WithUnreadLimit overrides DefaultUnreadLimit.
func WithUnreadLimit(n int) Option {
	return func(f *Fanout) {
		if n > 0 {
			f.unreadLimit = n
		}
	}
}

// WithClock sets the time source used to stamp notifications.
func WithClock(now func() time.Time) Option {
	return func(f *Fanout) { f.now = now }
}

// NewFanout creates a Fanout writing to st.
func NewFanout(st Store, logger *logrus.Logger, opts ...Option) *Fanout {
	f := &Fanout{
		store:       st,
		unreadLimit: DefaultUnreadLimit,
		now:         time.Now,
		log:         logger.WithField("component", "notify"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AddDispatcher registers a delivery channel after construction.
func (f *Fanout) AddDispatcher(d Dispatcher) {
	f.dispatchers = append(f.dispatchers, d)
}

// Recipients returns the assignees of ev excluding the actor, deduplicated
// and in assignee order.
func Recipients(ev Event) []string {
	seen := make(map[string]struct{}, len(ev.Assignees))
	out := make([]string, 0, len(ev.Assignees))
	for _, id := range ev.Assignees {
		if id == "" || id == ev.Actor.ID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Notify persists one notification per recipient of ev, then hands each to
// the dispatchers. It returns the persisted notifications.
func (f *Fanout) Notify(ctx context.Context, ev Event) ([]model.Notification, error) {
	recipients := Recipients(ev)
	if len(recipients) == 0 {
		return nil, nil
	}

	title, message := render(ev)
	now := f.now().UTC()
	taskID := ev.Task.ID

	ns := make([]model.Notification, len(recipients))
	for i, r := range recipients {
		ns[i] = model.Notification{
			RecipientID: r,
			TaskID:      &taskID,
			Type:        ev.Type,
			Title:       title,
			Message:     message,
			CreatedAt:   now,
		}
	}

	if err := f.store.CreateNotifications(ctx, ns); err != nil {
		return nil, errors.Wrapf(err, "persist %s notifications for task %s", ev.Type, ev.Task.ID)
	}

	f.dispatch(ctx, ns)
	return ns, nil
}

func (f *Fanout) dispatch(ctx context.Context, ns []model.Notification) {
	for _, n := range ns {
		for _, d := range f.dispatchers {
			if err := d.Dispatch(ctx, n); err != nil {
				f.log.WithFields(logrus.Fields{
					"notification": n.ID,
					"recipient":    n.RecipientID,
					"type":         n.Type,
				}).WithError(err).Warn("dispatch failed")
			}
		}
	}
}

// GetUnread returns the caller's most recent unread notifications, newest
// first, capped at the configured limit.
func (f *Fanout) GetUnread(ctx context.Context, userID string) ([]model.Notification, error) {
	ns, err := f.store.GetUnreadNotifications(ctx, userID, f.unreadLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "load unread notifications for %s", userID)
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	return ns, nil
}

// MarkRead marks the caller's notifications as read. Already-read and
// foreign ids are ignored, so repeated or concurrent calls are safe.
// Returns how many notifications changed state.
func (f *Fanout) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	n, err := f.store.MarkNotificationsRead(ctx, userID, ids)
	if err != nil {
		return 0, errors.Wrapf(err, "mark notifications read for %s", userID)
	}
	return n, nil
}
