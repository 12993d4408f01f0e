package notify

import (
	"bytes"
	"context"
	"io"

	"github.com/emersion/go-message/mail"
	"github.com/go-faster/errors"

	"github.com/nhle/tracker/internal/model"
)

// Mailer hands a rendered RFC 5322 message to an outbound mail system.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// UserLookup resolves a recipient's address.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.UserProfile, error)
}

// EmailDispatcher renders each notification as a plain-text email.
type EmailDispatcher struct {
	from   string
	users  UserLookup
	mailer Mailer
}

// NewEmailDispatcher creates an EmailDispatcher sending as from.
func NewEmailDispatcher(from string, users UserLookup, mailer Mailer) *EmailDispatcher {
	return &EmailDispatcher{from: from, users: users, mailer: mailer}
}

// Dispatch implements Dispatcher. Recipients without an email address are
// skipped.
func (d *EmailDispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	u, err := d.users.GetUser(ctx, n.RecipientID)
	if err != nil {
		return errors.Wrapf(err, "look up recipient %s", n.RecipientID)
	}
	if u.Email == "" {
		return nil
	}

	msg, err := ComposeEmail(d.from, *u, n)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, d.from, []string{u.Email}, msg); err != nil {
		return errors.Wrapf(err, "send notification %s", n.ID)
	}
	return nil
}

// ComposeEmail renders n for recipient as a single-part text/plain message.
func ComposeEmail(from string, recipient model.UserProfile, n model.Notification) ([]byte, error) {
	var h mail.Header
	h.SetDate(n.CreatedAt)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: recipient.Name, Address: recipient.Email}})
	h.SetSubject(n.Title)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("X-Tracker-Notification", string(n.Type))
	if n.TaskID != nil {
		h.Set("X-Tracker-Task", *n.TaskID)
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, errors.Wrap(err, "generate message id")
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, errors.Wrap(err, "create message writer")
	}
	if _, err := io.WriteString(w, n.Message+"\r\n"); err != nil {
		return nil, errors.Wrap(err, "write message body")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "close message")
	}
	return buf.Bytes(), nil
}
