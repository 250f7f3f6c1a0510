package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.InternalPort != 3001 {
		t.Errorf("Server.InternalPort = %d, want 3001", cfg.Server.InternalPort)
	}
	if cfg.Bus.Addr != ":3003" {
		t.Errorf("Bus.Addr = %q, want %q", cfg.Bus.Addr, ":3003")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if !cfg.Resync.Enabled {
		t.Error("Resync.Enabled should default to true")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load("/tmp/nonexistent-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.InternalPort != 3001 {
		t.Errorf("expected defaults, got InternalPort=%d", cfg.Server.InternalPort)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  internal_port: 4001
  secret: "s3cr3t"
app:
  dashboard_url: "https://dash.example.com"
bus:
  addr: ":4003"
  send_queue_size: 128
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.InternalPort != 4001 {
		t.Errorf("Server.InternalPort = %d, want 4001", cfg.Server.InternalPort)
	}
	if cfg.App.DashboardURL != "https://dash.example.com" {
		t.Errorf("App.DashboardURL = %q", cfg.App.DashboardURL)
	}
	if cfg.Bus.SendQueueSize != 128 {
		t.Errorf("Bus.SendQueueSize = %d, want 128", cfg.Bus.SendQueueSize)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
}

func TestLoadYAMLWithTokens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
bus:
  tokens:
    - token: "tok-newt-1"
      kind: "newt"
      id: "site-a"
    - token: "tok-olm-1"
      kind: "olm"
      id: "olm-a"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Bus.Tokens) != 2 || cfg.Bus.Tokens[0].ID != "site-a" {
		t.Errorf("Tokens mismatch: %+v", cfg.Bus.Tokens)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TUNNELCTL_LOGGER_LEVEL", "debug")
	t.Setenv("TUNNELCTL_BUS_ADDR", ":5003")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Bus.Addr != ":5003" {
		t.Errorf("Bus.Addr = %q, want %q", cfg.Bus.Addr, ":5003")
	}
}

func TestApplyEnvOverridesServerInternalPort(t *testing.T) {
	t.Setenv("TUNNELCTL_SERVER_INTERNAL_PORT", "9090")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Server.InternalPort != 9090 {
		t.Errorf("Server.InternalPort = %d, want 9090", cfg.Server.InternalPort)
	}
}

func TestApplyEnvOverridesServerSecret(t *testing.T) {
	t.Setenv("TUNNELCTL_SERVER_SECRET", "env-secret")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Server.Secret != "env-secret" {
		t.Errorf("Server.Secret = %q", cfg.Server.Secret)
	}
}

func TestApplyEnvOverridesTracerEnabled(t *testing.T) {
	t.Setenv("TUNNELCTL_TRACER_ENABLED", "true")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Tracer.Enabled {
		t.Error("Tracer.Enabled should be true")
	}
}

func TestApplyEnvOverridesTracerExporter(t *testing.T) {
	t.Setenv("TUNNELCTL_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer.Exporter = %q, want %q", cfg.Tracer.Exporter, "stdout")
	}
}

func TestApplyEnvOverridesAuditDisabled(t *testing.T) {
	t.Setenv("TUNNELCTL_SECURITY_AUDIT_ENABLED", "false")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Security.Audit.Enabled {
		t.Error("Security.Audit.Enabled should be false")
	}
}

func TestApplyEnvOverridesAuditEnabled(t *testing.T) {
	t.Setenv("TUNNELCTL_SECURITY_AUDIT_ENABLED", "true")

	cfg := Defaults()
	cfg.Security.Audit.Enabled = false
	ApplyEnvOverrides(cfg)

	if !cfg.Security.Audit.Enabled {
		t.Error("Security.Audit.Enabled should be true")
	}
}

func TestApplyEnvOverridesAuditPath(t *testing.T) {
	t.Setenv("TUNNELCTL_SECURITY_AUDIT_PATH", "/custom/audit.jsonl")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Security.Audit.Path != "/custom/audit.jsonl" {
		t.Errorf("Audit.Path = %q", cfg.Security.Audit.Path)
	}
}

func TestApplyEnvOverridesResync(t *testing.T) {
	t.Setenv("TUNNELCTL_RESYNC_ENABLED", "false")
	t.Setenv("TUNNELCTL_RESYNC_SCHEDULE", "@every 1m")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Resync.Enabled {
		t.Error("Resync.Enabled should be false")
	}
	if cfg.Resync.Schedule != "@every 1m" {
		t.Errorf("Resync.Schedule = %q", cfg.Resync.Schedule)
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insecure.yaml")
	if err := os.WriteFile(path, []byte("server:\n  internal_port: 5000\n"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for insecure permissions")
	}
}

func TestValidatePermissionsOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("test"), 0600)
	if err := validatePermissions(path); err != nil {
		t.Errorf("validatePermissions: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("invalid: [yaml: bad"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()

	// 0600 should pass
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("test"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := validatePermissions(good); err != nil {
		t.Errorf("0600 should pass: %v", err)
	}

	// 0644 should pass
	readable := filepath.Join(dir, "readable.yaml")
	if err := os.WriteFile(readable, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := validatePermissions(readable); err != nil {
		t.Errorf("0644 should pass: %v", err)
	}

	// 0666 should fail (world-writable)
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("test"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := validatePermissions(bad); err == nil {
		t.Error("0666 should fail")
	}
}

func TestValidatePermissionsStatError(t *testing.T) {
	err := validatePermissions("/tmp/nonexistent-file-for-stat-test-xyz.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadReadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unreadable.yaml")
	if err := os.WriteFile(path, []byte("server:\n  internal_port: 5000\n"), 0000); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for unreadable file")
	}
}

func TestApplyEnvOverridesRetentionMaxAgeUnaffected(t *testing.T) {
	// MaxAge has no env override wired; confirm the YAML/default value survives
	// ApplyEnvOverrides untouched.
	cfg := Defaults()
	want := cfg.Security.Audit.Retention.MaxAge
	ApplyEnvOverrides(cfg)
	if cfg.Security.Audit.Retention.MaxAge != want {
		t.Errorf("MaxAge changed unexpectedly: got %v, want %v", cfg.Security.Audit.Retention.MaxAge, want)
	}
	if want != 90*24*time.Hour {
		t.Errorf("default MaxAge = %v, want 90 days", want)
	}
}
