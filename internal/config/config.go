// Package config loads alignsync settings.
//
// Values come from, in increasing precedence: built-in defaults, a YAML file
// and ALIGNSYNC_* environment variables (ALIGNSYNC_REMOTE_BASE_URL for
// remote.base_url).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "ALIGNSYNC"
)

// Config keys.
const (
	KeyAppName       = "app_name"
	KeyDataDir       = "data_dir"
	KeyTemplateDB    = "template_db"
	KeyRemoteBaseURL = "remote.base_url"
	KeyRemoteTimeout = "remote.timeout"
	KeyRemoteToken   = "remote.token"
	KeyResetDelay    = "sync.reset_delay"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogBackups    = "log.max_backups"
	KeyMetricsAddr   = "metrics.addr"
)

// Config is the full alignsync configuration.
type Config struct {
	AppName    string        `mapstructure:"app_name" yaml:"app_name"`
	DataDir    string        `mapstructure:"data_dir" yaml:"data_dir"`
	TemplateDB string        `mapstructure:"template_db" yaml:"template_db"`
	Remote     RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Sync       SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Log        LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// RemoteConfig addresses the remote project service.
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Token   string        `mapstructure:"token" yaml:"token"`
}

// SyncConfig tunes the sync coordinator.
type SyncConfig struct {
	ResetDelay time.Duration `mapstructure:"reset_delay" yaml:"reset_delay"`
}

// LogConfig selects the log handler. An empty File logs to stderr.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// MetricsConfig is the listen address of serve-metrics.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultDir is the directory searched for config.yaml when no file is
// given.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "alignsync")
	}
	return ".alignsync"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AppName: "alignsync",
		DataDir: filepath.Join(DefaultDir(), "projects"),
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{ResetDelay: 5 * time.Second},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyAppName, d.AppName)
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyTemplateDB, d.TemplateDB)
	v.SetDefault(KeyRemoteBaseURL, d.Remote.BaseURL)
	v.SetDefault(KeyRemoteTimeout, d.Remote.Timeout)
	v.SetDefault(KeyRemoteToken, d.Remote.Token)
	v.SetDefault(KeyResetDelay, d.Sync.ResetDelay)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
	v.SetDefault(KeyLogFile, d.Log.File)
	v.SetDefault(KeyLogMaxSizeMB, d.Log.MaxSizeMB)
	v.SetDefault(KeyLogBackups, d.Log.MaxBackups)
	v.SetDefault(KeyMetricsAddr, d.Metrics.Addr)
}

// Load reads the configuration. With an empty path, config.yaml in
// DefaultDir is used if present; a missing default file is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(DefaultDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values the loader cannot type-check.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.AppName == "" {
		return errors.New("config: app_name is required")
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("config: remote.timeout must not be negative, got %s", c.Remote.Timeout)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log.level %q", s)
	}
	return l, nil
}

const defaultHeader = "# alignsync configuration\n# Environment variables ALIGNSYNC_<KEY> override these values.\n\n"

// WriteDefault writes the default configuration to path. An existing file is
// kept unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat config: %w", err)
		}
	}

	body, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, append([]byte(defaultHeader), body...), 0o644)
}
