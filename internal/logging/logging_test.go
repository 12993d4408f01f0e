package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
)

func TestNewDefaults(t *testing.T) {
	logger, closer, err := New(model.LogConfig{})
	require.NoError(t, err)
	defer closer.Close()

	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
	require.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	require.Equal(t, os.Stderr, logger.Out)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(model.LogConfig{Level: "loud"})
	require.Error(t, err)

	_, _, err = New(model.LogConfig{Format: "xml"})
	require.Error(t, err)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tracker.log")
	logger, closer, err := New(model.LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.WithField("component", "test").Debug("hello")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(b, &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "test", entry["component"])
	require.Equal(t, "debug", entry["level"])
}
