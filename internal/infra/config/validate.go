package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError when one or more problems are found, allowing callers to
// inspect all issues at once rather than failing on the first.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateApp(cfg, ve)
	validateGerbil(cfg, ve)
	validateStore(cfg, ve)
	validateBus(cfg, ve)
	validateKeypair(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateSecurity(cfg, ve)
	validateResync(cfg, ve)

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.InternalPort <= 0 || cfg.Server.InternalPort > 65535 {
		ve.Add("server.internal_port must be between 1 and 65535, got %d", cfg.Server.InternalPort)
	}
}

func validateApp(cfg *Config, ve *ValidationError) {
	if cfg.App.DashboardURL == "" {
		// Missing dashboard URL is a valid runtime state (§7): the
		// auth-proxy builder skips the push and logs a warning rather than
		// failing startup. Only validate shape when one is configured.
		return
	}
	u, err := url.Parse(cfg.App.DashboardURL)
	if err != nil || u.Hostname() == "" {
		ve.Add("app.dashboard_url %q is not a valid absolute URL", cfg.App.DashboardURL)
	}
}

func validateGerbil(cfg *Config, ve *ValidationError) {
	if cfg.Gerbil.ClientsStartPort <= 0 || cfg.Gerbil.ClientsStartPort > 65535 {
		ve.Add("gerbil.clients_start_port must be between 1 and 65535, got %d", cfg.Gerbil.ClientsStartPort)
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.Path == "" {
		ve.Add("store.path must not be empty")
	}
}

func validateBus(cfg *Config, ve *ValidationError) {
	if cfg.Bus.Addr == "" {
		ve.Add("bus.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(cfg.Bus.Addr); err != nil {
		ve.Add("bus.addr %q is not a valid host:port: %v", cfg.Bus.Addr, err)
	}
	if cfg.Bus.SendQueueSize <= 0 {
		ve.Add("bus.send_queue_size must be positive, got %d", cfg.Bus.SendQueueSize)
	}
	for i, tok := range cfg.Bus.Tokens {
		if tok.Token == "" {
			ve.Add("bus.tokens[%d].token must not be empty", i)
		}
		if tok.Kind != "newt" && tok.Kind != "olm" {
			ve.Add("bus.tokens[%d].kind must be \"newt\" or \"olm\", got %q", i, tok.Kind)
		}
		if tok.ID == "" {
			ve.Add("bus.tokens[%d].id must not be empty", i)
		}
	}
}

func validateKeypair(cfg *Config, ve *ValidationError) {
	if cfg.Keypair.Dir == "" {
		ve.Add("keypair.dir must not be empty")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		ve.Add("logger.level must be one of debug/info/warn/error, got %q", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		ve.Add("logger.format must be one of text/json, got %q", cfg.Logger.Format)
	}
	if cfg.Logger.Output == "" {
		ve.Add("logger.output must not be empty")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop":
	default:
		ve.Add("tracer.exporter must be one of stdout/noop, got %q", cfg.Tracer.Exporter)
	}
}

func validateSecurity(cfg *Config, ve *ValidationError) {
	if cfg.Security.Audit.Enabled && cfg.Security.Audit.Path == "" {
		ve.Add("security.audit.path is required when security.audit.enabled is true")
	}
	if cfg.Security.Audit.Retention.MaxSize != "" {
		if _, err := parseRetentionMaxSizeShape(cfg.Security.Audit.Retention.MaxSize); err != nil {
			ve.Add("security.audit.retention.max_size %q is invalid: %v", cfg.Security.Audit.Retention.MaxSize, err)
		}
	}
	if cfg.Security.RateLimit.RequestsPerMin < 0 {
		ve.Add("security.rate_limit.requests_per_min must not be negative")
	}
	if cfg.Security.RateLimit.BurstSize < 0 {
		ve.Add("security.rate_limit.burst_size must not be negative")
	}
}

func validateResync(cfg *Config, ve *ValidationError) {
	if !cfg.Resync.Enabled {
		return
	}
	if cfg.Resync.Schedule == "" {
		ve.Add("resync.schedule must not be empty when resync.enabled is true")
	}
	if cfg.Resync.StaleAfter <= 0 {
		ve.Add("resync.stale_after must be positive when resync.enabled is true")
	}
}

// parseRetentionMaxSizeShape validates the suffix shape of a max-size
// string without importing internal/security (which depends on this
// package's types), avoiding an import cycle.
func parseRetentionMaxSizeShape(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	multiplier := int64(1)
	numeric := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numeric = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numeric = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numeric = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numeric = strings.TrimSuffix(s, "B")
	}
	var n int64
	if _, err := fmt.Sscanf(numeric, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid numeric size %q", numeric)
	}
	return n * multiplier, nil
}
