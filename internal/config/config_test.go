package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"taskboard/internal/sorting"
)

func TestDecodeDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestDecodePostgres(t *testing.T) {
	src := `
server:
  port: 9090
database:
  url: postgres://u:p@localhost/tasks?sslmode=disable
logging:
  level: debug
  format: json
report:
  font_path: assets/fonts/DejaVuSans.ttf
`
	cfg, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Database.Driver != DriverPostgres {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Logging.Format != "json" || cfg.Report.FontPath != "assets/fonts/DejaVuSans.ttf" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"unknown driver":  "database:\n  driver: mysql\n",
		"postgres no url": "database:\n  driver: postgres\n",
		"port range":      "server:\n  port: 70000\n",
		"malformed":       "server: [\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(src)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d", cfg.Server.Port)
	}

	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("explicit missing config must fail")
	}
}

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadClient(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Errorf("api_url = %q", cfg.APIURL)
	}
	if cfg.Cache.StaleTime != time.Minute || cfg.Cache.Retries != 1 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if f, _ := cfg.SortField(); f != sorting.ByCreatedAt {
		t.Errorf("sort = %q", f)
	}
	if cfg.Breaker.Enabled {
		t.Error("breaker enabled by default")
	}
}

func TestLoadClientFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tb.yaml")
	src := `
api_url: http://tasks.internal:8000
stale_time: 30s
retries: 0
sort: status
breaker:
  enabled: true
`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKBOARD_SORT", "due_date")

	cfg, err := LoadClient(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.APIURL != "http://tasks.internal:8000" {
		t.Errorf("api_url = %q", cfg.APIURL)
	}
	if cfg.Cache.StaleTime != 30*time.Second || cfg.Cache.Retries != 0 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if !cfg.Breaker.Enabled || cfg.Breaker.MinRequests != 3 {
		t.Errorf("breaker = %+v", cfg.Breaker)
	}
	if cfg.Sort != "due_date" {
		t.Errorf("env must override file: sort = %q", cfg.Sort)
	}
}

func TestLoadClientRejectsBadSort(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TASKBOARD_SORT", "priority")
	if _, err := LoadClient(viper.New(), ""); err == nil {
		t.Fatal("expected error for unknown sort field")
	}
}
