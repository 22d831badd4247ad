package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codegov.yaml")
	data := `
server:
  addr: ":9090"
  shutdown_timeout: 5s
store:
  path: /var/lib/codegov
transform:
  typecheck_timeout: 30s
  exclude_dirs: [node_modules, vendor]
redact:
  policy_file: policies.yaml
logging:
  debug_mode: true
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Server.Addr = ":9090"
	want.Server.ShutdownTimeout = "5s"
	want.Store.Path = "/var/lib/codegov"
	want.Transform.TypecheckTimeout = "30s"
	want.Transform.ExcludeDirs = []string{"node_modules", "vendor"}
	want.Redact.PolicyFile = "policies.yaml"
	want.Logging.DebugMode = true
	want.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CODEGOV_ADDR", ":7070")
	t.Setenv("CODEGOV_STORE_PATH", "/tmp/codegov-store")
	t.Setenv("CODEGOV_LOG_LEVEL", "warn")
	t.Setenv("CODEGOV_DEBUG", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.Path != "/tmp/codegov-store" {
		t.Fatalf("store path = %q", cfg.Store.Path)
	}
	if cfg.Logging.Level != "warn" || !cfg.Logging.DebugMode {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_RejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed YAML accepted")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	d, err := cfg.TypecheckTimeout()
	if err != nil || d != 60*time.Second {
		t.Fatalf("typecheck timeout = %v, %v", d, err)
	}

	cfg.Transform.MutationTimeout = "90s"
	d, err = cfg.MutationTimeout()
	if err != nil || d != 90*time.Second {
		t.Fatalf("mutation timeout = %v, %v", d, err)
	}

	cfg.Server.ShutdownTimeout = ""
	d, err = cfg.ShutdownTimeout()
	if err != nil || d != 10*time.Second {
		t.Fatalf("empty duration should default, got %v, %v", d, err)
	}

	cfg.Server.ShutdownTimeout = "-3s"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative duration accepted")
	}

	cfg.Server.ShutdownTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unparseable duration accepted")
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty addr accepted")
	}

	cfg = Default()
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty store path accepted")
	}
}

func TestUsageLogPath(t *testing.T) {
	cfg := Default()
	if got := cfg.UsageLogPath(); got != filepath.Join(".codegov", "usage.json") {
		t.Fatalf("default usage log path = %q", got)
	}
	cfg.Finops.UsageLogPath = "/data/usage.json"
	if got := cfg.UsageLogPath(); got != "/data/usage.json" {
		t.Fatalf("override ignored, got %q", got)
	}
}
