package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// OutboxMailer drops each message as an .eml file in a pickup directory
// watched by the outbound mail system.
type OutboxMailer struct {
	dir string
	seq atomic.Uint64
}

var _ Mailer = (*OutboxMailer)(nil)

// NewOutboxMailer creates dir if needed.
func NewOutboxMailer(dir string) (*OutboxMailer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &OutboxMailer{dir: dir}, nil
}

// Send writes msg to a new file named after the time and first recipient.
func (m *OutboxMailer) Send(_ context.Context, _ string, to []string, msg []byte) error {
	rcpt := "unknown"
	if len(to) > 0 {
		rcpt = strings.NewReplacer("@", "_at_", "/", "_", `\`, "_").Replace(to[0])
	}
	name := fmt.Sprintf("%d-%04d-%s.eml", time.Now().UTC().UnixNano(), m.seq.Add(1), rcpt)
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, msg, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
