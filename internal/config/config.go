// Package config handles snapnotify configuration
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
	"github.com/GriffinCanCode/snapnotify/internal/fingerprint"
)

// ConfigFileEnv names a YAML file to read when no --config flag is given.
const ConfigFileEnv = "SNAPNOTIFY_CONFIG"

// Defaults
const (
	DefaultHTTPAddr    = "127.0.0.1:8765"
	DefaultGRPCAddr    = "127.0.0.1:8766"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultEventBuffer = 64
)

type Config struct {
	ScreenshotDir   string `mapstructure:"screenshot_dir"`
	HTTPAddr        string `mapstructure:"http_addr"`  // empty disables HTTP
	GRPCAddr        string `mapstructure:"grpc_addr"`  // empty disables gRPC health
	LogLevel        string `mapstructure:"log_level"`  // debug, info, warn, error
	LogFormat       string `mapstructure:"log_format"` // text, json
	FingerprintMode string `mapstructure:"fingerprint_mode"`
	EventBuffer     int    `mapstructure:"event_buffer"`
	ConsoleNotify   bool   `mapstructure:"console_notify"`
}

// envKeys maps config keys to their environment variables.
var envKeys = map[string]string{
	"screenshot_dir":   "SCREENSHOT_DIR",
	"http_addr":        "HTTP_ADDR",
	"grpc_addr":        "GRPC_ADDR",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
	"fingerprint_mode": "FINGERPRINT_MODE",
	"event_buffer":     "EVENT_BUFFER",
	"console_notify":   "CONSOLE_NOTIFY",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ScreenshotDir:   DefaultScreenshotDir(),
		HTTPAddr:        DefaultHTTPAddr,
		GRPCAddr:        DefaultGRPCAddr,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		FingerprintMode: fingerprint.ModeContent,
		EventBuffer:     DefaultEventBuffer,
		ConsoleNotify:   true,
	}
}

// Load layers defaults, an optional YAML file, then the environment.
// file may be empty; SNAPNOTIFY_CONFIG is consulted in that case.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}

	if file == "" {
		file = os.Getenv(ConfigFileEnv)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "read config file").
				WithMetadata("file", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "decode config")
	}
	cfg.ScreenshotDir = expandHome(cfg.ScreenshotDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("screenshot_dir", d.ScreenshotDir)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("grpc_addr", d.GRPCAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("fingerprint_mode", d.FingerprintMode)
	v.SetDefault("event_buffer", d.EventBuffer)
	v.SetDefault("console_notify", d.ConsoleNotify)
}

// Validate reports the first invalid field as CodeConfigInvalid.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ScreenshotDir) == "":
		return invalid("screenshot_dir", "must not be empty")
	case c.EventBuffer <= 0:
		return invalid("event_buffer", "must be positive")
	case !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)):
		return invalid("log_level", "must be debug, info, warn or error")
	case !slices.Contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)):
		return invalid("log_format", "must be text or json")
	}
	if _, err := fingerprint.New(c.FingerprintMode); err != nil {
		return err
	}
	return nil
}

func invalid(field, msg string) error {
	return apperrors.Newf(apperrors.CodeConfigInvalid, "%s %s", field, msg).WithMetadata("field", field)
}

// SlogLevel converts LogLevel for slog.HandlerOptions.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func picturesDir(home string) string {
	return filepath.Join(home, "Pictures", "Screenshots")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
