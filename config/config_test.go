package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "name: test-host\n"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Name != "test-host" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Listen != ":8090" {
		t.Errorf("default listen = %q", cfg.Listen)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("default store = %q", cfg.Store.Backend)
	}
	if cfg.Broadcast.Transport != TransportNone {
		t.Errorf("default transport = %q", cfg.Broadcast.Transport)
	}
}

func TestLoadFromFile_FullConfig(t *testing.T) {
	body := `
name: canvas-host
listen: ":9000"
widgetDirs:
  - /srv/widgets
persistDebounce: 250ms
store:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: "sn:state:"
    ttl: 24h
broadcast:
  transport: nats
  nats:
    url: nats://localhost:4222
log:
  level: debug
  format: json
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.PersistDebounce.Std() != 250*time.Millisecond {
		t.Errorf("persistDebounce = %v", cfg.PersistDebounce.Std())
	}
	if cfg.Store.Redis.TTL.Std() != 24*time.Hour {
		t.Errorf("ttl = %v", cfg.Store.Redis.TTL.Std())
	}
	if cfg.Broadcast.NATS.URL != "nats://localhost:4222" {
		t.Errorf("nats url = %q", cfg.Broadcast.NATS.URL)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown store", "store:\n  backend: etcd\n"},
		{"redis without addr", "store:\n  backend: redis\n"},
		{"postgres without dsn", "store:\n  backend: postgres\n"},
		{"unknown transport", "broadcast:\n  transport: carrier-pigeon\n"},
		{"nats without url", "broadcast:\n  transport: nats\n"},
		{"kafka without brokers", "broadcast:\n  transport: kafka\n"},
		{"bad log level", "log:\n  level: verbose\n"},
		{"bad duration", "persistDebounce: soon\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadFromFile(writeConfig(t, tc.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
