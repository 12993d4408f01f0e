package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig holds settings for the relational store.
type DatabaseConfig struct {
	// Path is the SQLite file path, or ":memory:".
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`

	// File enables rotating file output when non-empty.
	File string `mapstructure:"file" yaml:"file"`
}

// HTTPConfig holds the listen address of the API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// NotificationConfig holds notification fanout settings.
type NotificationConfig struct {
	// UnreadLimit caps the unread query.
	UnreadLimit int `mapstructure:"unread_limit" yaml:"unread_limit"`

	// EmailFrom is the sender address; email dispatch is off when empty.
	EmailFrom string `mapstructure:"email_from" yaml:"email_from"`

	// OutboxDir receives rendered .eml files for the external mailer.
	OutboxDir string `mapstructure:"outbox_dir" yaml:"outbox_dir"`
}

// AttachmentConfig holds the attachment upload policy.
type AttachmentConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes" yaml:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types" yaml:"allowed_types"`
	Dir          string   `mapstructure:"dir" yaml:"dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database      DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	HTTP          HTTPConfig         `mapstructure:"http" yaml:"http"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Attachments   AttachmentConfig   `mapstructure:"attachments" yaml:"attachments"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tracker/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tracker", "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: "tracker.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Notifications: NotificationConfig{
			UnreadLimit: 10,
			OutboxDir:   "outbox",
		},
		Attachments: AttachmentConfig{
			MaxBytes: 10 << 20,
			AllowedTypes: []string{
				"application/pdf",
				"image/png",
				"image/jpeg",
				"text/plain",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			},
			Dir: "attachments",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Missing files resolve to defaults; TRACKER_* environment variables
// override file values (TRACKER_DATABASE_PATH, TRACKER_LOG_LEVEL, ...).
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tracker")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("notifications.unread_limit", def.Notifications.UnreadLimit)
	v.SetDefault("notifications.email_from", def.Notifications.EmailFrom)
	v.SetDefault("notifications.outbox_dir", def.Notifications.OutboxDir)
	v.SetDefault("attachments.max_bytes", def.Attachments.MaxBytes)
	v.SetDefault("attachments.allowed_types", def.Attachments.AllowedTypes)
	v.SetDefault("attachments.dir", def.Attachments.Dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		_, isPathErr := err.(*os.PathError)
		if !isPathErr && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Notifications.UnreadLimit <= 0 {
		cfg.Notifications.UnreadLimit = def.Notifications.UnreadLimit
	}
	if cfg.Attachments.MaxBytes <= 0 {
		cfg.Attachments.MaxBytes = def.Attachments.MaxBytes
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("http", cfg.HTTP)
	v.Set("notifications", cfg.Notifications)
	v.Set("attachments", cfg.Attachments)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
