package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bazarchat.yaml")
	data := `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/tmp/bazarchat"
security:
  api_keys:
    backend: ["bk1"]
    frontend: ["fk1", "fk2"]
realtime:
  send_buffer: 32
  ping_interval: "15s"
  pong_timeout: 45
retention:
  enabled: true
  cron: "0 3 * * *"
  period: "720h"
  batch_size: 200
ingest:
  queue:
    capacity: 4096
    max_pooled_buffer_bytes: "256KB"
  processor:
    workers: 4
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if got := cfg.Realtime.PingInterval.Duration(); got != 15*time.Second {
		t.Fatalf("ping interval = %v", got)
	}
	// plain numbers parse as seconds
	if got := cfg.Realtime.PongTimeout.Duration(); got != 45*time.Second {
		t.Fatalf("pong timeout = %v", got)
	}
	if got := cfg.Ingest.Queue.MaxPooledBufferBytes.Int64(); got != 256000 {
		t.Fatalf("max pooled buffer = %d", got)
	}
	if !cfg.Retention.Enabled || cfg.Retention.Cron != "0 3 * * *" {
		t.Fatalf("retention not parsed: %+v", cfg.Retention)
	}
	if len(cfg.Security.APIKeys.Frontend) != 2 {
		t.Fatalf("frontend keys not parsed")
	}
}

func TestDefaultPort(t *testing.T) {
	cfg := &Config{}
	if cfg.Addr() != ":8080" {
		t.Fatalf("default addr = %q", cfg.Addr())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BAZARCHAT_SERVER_PORT", "7001")
	t.Setenv("BAZARCHAT_SERVER_DB_PATH", "/data/chat")
	t.Setenv("BAZARCHAT_API_BACKEND_KEYS", "k1, k2,")
	t.Setenv("BAZARCHAT_RETENTION_ENABLED", "yes")

	cfg, envUsed, err := LoadEffective("")
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if !envUsed {
		t.Fatalf("env usage not reported")
	}
	if cfg.Server.Port != 7001 || cfg.Server.DBPath != "/data/chat" {
		t.Fatalf("env overrides not applied: %+v", cfg.Server)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 {
		t.Fatalf("comma list parsing broken: %v", cfg.Security.APIKeys.Backend)
	}
	if !cfg.Retention.Enabled {
		t.Fatalf("truthy env not applied")
	}
}

func TestFileWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BAZARCHAT_SERVER_PORT", "9100")

	cfg, envUsed, err := LoadEffective(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !envUsed || cfg.Server.Port != 9100 {
		t.Fatalf("env must win over file, port=%d", cfg.Server.Port)
	}
}

func TestRuntimeConfigCopies(t *testing.T) {
	SetRuntime(&RuntimeConfig{SigningKeys: map[string]struct{}{"s1": {}}})
	t.Cleanup(func() { SetRuntime(nil) })

	keys := GetSigningKeys()
	if _, ok := keys["s1"]; !ok {
		t.Fatalf("signing key missing")
	}
	// mutating the copy must not affect the stored config
	keys["injected"] = struct{}{}
	if _, ok := GetSigningKeys()["injected"]; ok {
		t.Fatalf("returned map must be a copy")
	}
}
