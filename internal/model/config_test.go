package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultAppConfig(), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/tracker.db
log:
  level: debug
notifications:
  unread_limit: 0
  email_from: tracker@example.com
attachments:
  max_bytes: 2048
  allowed_types: [text/plain]
`), 0o644))
	t.Setenv("TRACKER_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/tracker.db", cfg.Database.Path)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	require.Equal(t, 10, cfg.Notifications.UnreadLimit)
	require.Equal(t, "tracker@example.com", cfg.Notifications.EmailFrom)
	require.Equal(t, int64(2048), cfg.Attachments.MaxBytes)
	require.Equal(t, []string{"text/plain"}, cfg.Attachments.AllowedTypes)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.HTTP.Addr = ":9999"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", loaded.HTTP.Addr)
}

func TestKind(t *testing.T) {
	require.Equal(t, "ok", Kind(nil))
	require.Equal(t, "conflict", Kind(ErrConflict))
	require.Equal(t, "internal", Kind(os.ErrClosed))
}
