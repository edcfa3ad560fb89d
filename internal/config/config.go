package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr = ":8020"
	defaultNotifyAddr = ":8021"
	defaultDBPath     = "simnet.db"
	defaultRunTimeout = 5 * time.Minute

	envConfigFile = "SIMNET_CONFIG"
	envListenAddr = "SIMNET_LISTEN_ADDR"
	envNotifyAddr = "SIMNET_NOTIFY_ADDR"
	envBindAddr   = "SIMNET_BIND_ADDR"
	envDBPath     = "SIMNET_DB_PATH"
	envLogLevel   = "SIMNET_LOG_LEVEL"
	envRunTimeout = "SIMNET_RUN_TIMEOUT"
)

// Config holds server configuration. Values come from defaults, an optional
// YAML file named by SIMNET_CONFIG, and environment variables, in that order
// of increasing precedence.
type Config struct {
	ListenAddr string
	NotifyAddr string
	DBPath     string
	LogLevel   slog.Level
	RunTimeout time.Duration
}

// fileConfig is the YAML shape of a config file. All fields are optional.
type fileConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	NotifyAddr string `yaml:"notify_addr"`
	BindAddr   string `yaml:"bind_addr"`
	DBPath     string `yaml:"db_path"`
	LogLevel   string `yaml:"log_level"`
	RunTimeout string `yaml:"run_timeout"`
}

// Load builds the configuration from defaults, file, and environment.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		NotifyAddr: defaultNotifyAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		RunTimeout: defaultRunTimeout,
	}

	if path := os.Getenv(envConfigFile); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if bind := os.Getenv(envBindAddr); bind != "" {
		cfg.ListenAddr = joinBind(bind, cfg.ListenAddr)
		cfg.NotifyAddr = joinBind(bind, cfg.NotifyAddr)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.NotifyAddr != "" {
		c.NotifyAddr = fc.NotifyAddr
	}
	if fc.BindAddr != "" {
		c.ListenAddr = joinBind(fc.BindAddr, c.ListenAddr)
		c.NotifyAddr = joinBind(fc.BindAddr, c.NotifyAddr)
	}
	if fc.DBPath != "" {
		c.DBPath = fc.DBPath
	}
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if fc.RunTimeout != "" {
		d, err := time.ParseDuration(fc.RunTimeout)
		if err != nil {
			return fmt.Errorf("parse run_timeout %q: %w", fc.RunTimeout, err)
		}
		c.RunTimeout = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(envNotifyAddr); v != "" {
		c.NotifyAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envRunTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", envRunTimeout, v, err)
		}
		c.RunTimeout = d
	}
	return nil
}

// joinBind prefixes a bare ":port" address with the bind host. Addresses that
// already carry a host are left alone.
func joinBind(bind, addr string) string {
	if strings.HasPrefix(addr, ":") {
		return bind + addr
	}
	return addr
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
