package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkarlsen/gatehouse/internal/router"
)

const sampleTOML = `
grace_period = "10s"
health_interval = "5s"
log_level = "info"
metrics_listen = "127.0.0.1:9090"
control_listen = "127.0.0.1:9091"

[log]
dir = "/var/log/gatehouse"
max_size_mb = 20

[journal]
type = "sqlite"
path = "/var/lib/gatehouse/journal.db"

[[services]]
name = "api"
command = "uvicorn app:app --port 8000"
autorestart = true
max_start_retries = 3
readiness_delay = "1s"

[[services]]
name = "worker"
command = "python worker.py"
autorestart = true
max_start_retries = 3
critical = false
[services.log]
dir = "/var/log/worker"

[router]
listen = ":8080"
connect_timeout = "30s"
client_addr_headers = ["X-Forwarded-For", "X-Real-IP"]

[[router.upstreams]]
name = "api"
addr = "127.0.0.1:8000"

[[router.upstreams]]
name = "gateway"
addr = "127.0.0.1:8001"

[[router.routes]]
kind = "prefix"
prefix = "/api/widgets/mcp"
upstream = "gateway"

[[router.routes]]
kind = "static"
prefix = "/static/"
dir = "/srv/static"

[[router.routes]]
kind = "regex"
pattern = "^/ws(/|$)"
upstream = "api"

[[router.routes]]
kind = "prefix"
prefix = "/"
upstream = "api"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatehouse.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTopLevel(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.GracePeriod != 10*time.Second {
		t.Fatalf("grace_period = %v", fc.GracePeriod)
	}
	if fc.HealthInterval != 5*time.Second {
		t.Fatalf("health_interval = %v", fc.HealthInterval)
	}
	if fc.MetricsListen != "127.0.0.1:9090" || fc.ControlListen != "127.0.0.1:9091" {
		t.Fatalf("listen addrs: %s %s", fc.MetricsListen, fc.ControlListen)
	}
	jc := fc.JournalOptions()
	if jc.Type != "sqlite" || jc.Path != "/var/lib/gatehouse/journal.db" {
		t.Fatalf("journal: %+v", jc)
	}
}

func TestSpecsConversion(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	specs, err := fc.Specs()
	if err != nil {
		t.Fatalf("specs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	api := specs[0]
	if api.Name != "api" || !api.AutoRestart || api.MaxStartRetries != 3 {
		t.Fatalf("api spec: %+v", api)
	}
	if api.ReadinessDelay != time.Second {
		t.Fatalf("api readiness_delay = %v", api.ReadinessDelay)
	}
	if !api.Critical {
		t.Fatal("critical must default to true")
	}
	// Top-level log settings flow into the spec unless overridden.
	if api.Log.Dir != "/var/log/gatehouse" || api.Log.MaxSizeMB != 20 {
		t.Fatalf("api log: %+v", api.Log)
	}

	worker := specs[1]
	if worker.Critical {
		t.Fatal("explicit critical=false must stick")
	}
	if worker.Log.Dir != "/var/log/worker" {
		t.Fatalf("per-service log override lost: %+v", worker.Log)
	}
	if worker.Log.MaxSizeMB != 20 {
		t.Fatalf("top-level rotation default lost: %+v", worker.Log)
	}
}

func TestSpecsValidationErrors(t *testing.T) {
	bad := `
[[services]]
name = ""
command = "sleep 1"
`
	fc, err := Load(writeConfig(t, bad))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := fc.Specs(); err == nil {
		t.Fatal("expected validation error for empty name")
	}
}

func TestRouterOptionsConversion(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleTOML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts, err := fc.RouterOptions()
	if err != nil {
		t.Fatalf("router options: %v", err)
	}
	if opts.Listen != ":8080" || opts.ConnectTimeout != 30*time.Second {
		t.Fatalf("options: %+v", opts)
	}
	if len(opts.Upstreams) != 2 || len(opts.Routes) != 4 {
		t.Fatalf("counts: %d upstreams, %d routes", len(opts.Upstreams), len(opts.Routes))
	}
	if _, ok := opts.Routes[0].(router.PrefixRoute); !ok {
		t.Fatalf("route 0: %T", opts.Routes[0])
	}
	if _, ok := opts.Routes[1].(router.StaticRoute); !ok {
		t.Fatalf("route 1: %T", opts.Routes[1])
	}
	rr, ok := opts.Routes[2].(router.RegexRoute)
	if !ok {
		t.Fatalf("route 2: %T", opts.Routes[2])
	}
	if !rr.Pattern.MatchString("/ws/chat") || rr.Pattern.MatchString("/wsx") {
		t.Fatalf("regex compiled wrong: %s", rr.Pattern)
	}
}

func TestRouterOptionsRejectsBadRoutes(t *testing.T) {
	badKind := `
[router]
listen = ":8080"
[[router.routes]]
kind = "glob"
prefix = "/"
upstream = "api"
`
	fc, err := Load(writeConfig(t, badKind))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := fc.RouterOptions(); err == nil {
		t.Fatal("expected error for unknown route kind")
	}

	badRegex := `
[router]
listen = ":8080"
[[router.routes]]
kind = "regex"
pattern = "(unclosed"
upstream = "api"
`
	fc, err = Load(writeConfig(t, badRegex))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := fc.RouterOptions(); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
