// Package config loads and validates the controller's configuration: a
// single YAML file (with optional circular-safe includes), overridable by
// TUNNELCTL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the controller's top-level configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	App      AppConfig      `yaml:"app"`
	Gerbil   GerbilConfig   `yaml:"gerbil"`
	Store    StoreConfig    `yaml:"store"`
	Bus      BusConfig      `yaml:"bus"`
	Keypair  KeypairConfig  `yaml:"keypair"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
	Security SecurityConfig `yaml:"security"`
	Resync   ResyncConfig   `yaml:"resync"`
	Includes []string       `yaml:"includes,omitempty"`

	// MergedIncludePaths records the absolute paths of every include file
	// actually merged into this Config, in merge order. It is populated by
	// processIncludes and exists so the caller can log what a split config
	// resolved to once its logger is constructed (config.Load itself runs
	// before the logger exists).
	MergedIncludePaths []string `yaml:"-"`
}

// ServerConfig holds the internal HTTP surface's settings.
type ServerConfig struct {
	InternalPort int    `yaml:"internal_port"`
	// Secret is an HMAC secret for auxiliary signing. It is read by the
	// auth-proxy builder but never placed in the emitted AuthConfig payload
	// (kept wired for forward compatibility; see DESIGN.md).
	Secret string `yaml:"secret"`
}

// AppConfig holds controller-wide application settings.
type AppConfig struct {
	// DashboardURL is the public URL of the controller; used to derive the
	// auth-proxy cookie domain and session-validation URL.
	DashboardURL string `yaml:"dashboard_url"`
}

// GerbilConfig holds settings for the exit-node relay announced to Olms.
type GerbilConfig struct {
	ClientsStartPort int `yaml:"clients_start_port"`
}

// StoreConfig holds the state-store (C1) settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BusConfig holds the agent bus (C2)'s listener and auth settings.
type BusConfig struct {
	Addr          string        `yaml:"addr"`
	SendQueueSize int           `yaml:"send_queue_size"`
	Tokens        []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig binds a bearer token to the agent identity it authenticates.
type TokenConfig struct {
	Token string `yaml:"token"`
	Kind  string `yaml:"kind"` // "newt" or "olm"
	ID    string `yaml:"id"`
}

// KeypairConfig holds the RSA keypair's on-disk location.
type KeypairConfig struct {
	Dir string `yaml:"dir"`
}

// LoggerConfig holds logging settings consumed by internal/infra/logger.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// TracerConfig holds tracing settings consumed by internal/infra/tracer.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// SecurityConfig holds audit logging and rate-limiting settings.
type SecurityConfig struct {
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuditConfig holds audit log settings for internal/security.FileAuditLogger.
type AuditConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Path      string          `yaml:"path"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig holds audit log retention policy settings.
type RetentionConfig struct {
	MaxAge  time.Duration `yaml:"max_age"`
	MaxSize string        `yaml:"max_size"` // e.g. "100MB", parsed by security.ParseRetentionMaxSize
}

// RateLimitConfig holds the internal HTTP surface's rate-limit settings.
type RateLimitConfig struct {
	RequestsPerMin int      `yaml:"requests_per_min"`
	BurstSize      int      `yaml:"burst_size"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// ResyncConfig holds the periodic fallback resync job's settings (§4.7).
type ResyncConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Schedule   string        `yaml:"schedule"` // cron expression, e.g. "*/5 * * * *"
	StaleAfter time.Duration `yaml:"stale_after"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".tunnelctl", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			InternalPort: 3001,
		},
		App: AppConfig{},
		Gerbil: GerbilConfig{
			ClientsStartPort: 51820,
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "controller.db"),
		},
		Bus: BusConfig{
			Addr:          ":3003",
			SendQueueSize: 64,
		},
		Keypair: KeypairConfig{
			Dir: filepath.Join(dataDir, "auth"),
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Security: SecurityConfig{
			Audit: AuditConfig{
				Enabled: true,
				Path:    filepath.Join(dataDir, "audit.jsonl"),
				Retention: RetentionConfig{
					MaxAge: 90 * 24 * time.Hour,
				},
			},
			RateLimit: RateLimitConfig{
				RequestsPerMin: 120,
				BurstSize:      30,
			},
		},
		Resync: ResyncConfig{
			Enabled:    true,
			Schedule:   "*/5 * * * *",
			StaleAfter: 10 * time.Minute,
		},
	}
}

// Load reads a YAML config file, applies includes, applies env var
// overrides, and validates the result. A missing file falls back to
// Defaults() plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to discover the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: re-unmarshal the main file so it takes precedence
		// over whatever its includes set.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps TUNNELCTL_* env vars onto cfg, taking precedence
// over whatever the YAML file set.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUNNELCTL_SERVER_INTERNAL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.InternalPort = n
		}
	}
	if v := os.Getenv("TUNNELCTL_SERVER_SECRET"); v != "" {
		cfg.Server.Secret = v
	}
	if v := os.Getenv("TUNNELCTL_APP_DASHBOARD_URL"); v != "" {
		cfg.App.DashboardURL = v
	}
	if v := os.Getenv("TUNNELCTL_GERBIL_CLIENTS_START_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gerbil.ClientsStartPort = n
		}
	}
	if v := os.Getenv("TUNNELCTL_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TUNNELCTL_BUS_ADDR"); v != "" {
		cfg.Bus.Addr = v
	}
	if v := os.Getenv("TUNNELCTL_BUS_SEND_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.SendQueueSize = n
		}
	}
	if v := os.Getenv("TUNNELCTL_KEYPAIR_DIR"); v != "" {
		cfg.Keypair.Dir = v
	}
	if v := os.Getenv("TUNNELCTL_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("TUNNELCTL_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("TUNNELCTL_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("TUNNELCTL_TRACER_ENABLED"); v != "" {
		cfg.Tracer.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TUNNELCTL_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("TUNNELCTL_SECURITY_AUDIT_ENABLED"); v != "" {
		cfg.Security.Audit.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TUNNELCTL_SECURITY_AUDIT_PATH"); v != "" {
		cfg.Security.Audit.Path = v
	}
	if v := os.Getenv("TUNNELCTL_RESYNC_ENABLED"); v != "" {
		cfg.Resync.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TUNNELCTL_RESYNC_SCHEDULE"); v != "" {
		cfg.Resync.Schedule = v
	}
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others, never writable by others).
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
