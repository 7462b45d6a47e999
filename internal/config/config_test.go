package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/meshnode-go/internal/core/service"
	"github.com/yndnr/meshnode-go/internal/infra/confloader"
)

const testUUID = "9c791e88-7acb-42e5-95ab-ab75cb74d774"

func validConfig() *ClientConfig {
	cfg := Default()
	cfg.Node.UUID = testUUID
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Node.PathPrefix != DefaultPathPrefix {
		t.Errorf("PathPrefix = %q", cfg.Node.PathPrefix)
	}
	if cfg.Node.JoinTimeout != 60*time.Second {
		t.Errorf("JoinTimeout = %s", cfg.Node.JoinTimeout)
	}
	if cfg.Storage.Engine != "file" {
		t.Errorf("Engine = %q", cfg.Storage.Engine)
	}
	if !cfg.Storage.Badger.SyncWrites {
		t.Error("badger SyncWrites must default to true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{"valid", func(*ClientConfig) {}, ""},
		{"missing uuid", func(c *ClientConfig) { c.Node.UUID = "" }, "node.uuid is required"},
		{"bad uuid", func(c *ClientConfig) { c.Node.UUID = "not-a-uuid" }, "node.uuid"},
		{"bad path prefix", func(c *ClientConfig) { c.Node.PathPrefix = "org/meshnode" }, "node.path_prefix"},
		{"root path prefix", func(c *ClientConfig) { c.Node.PathPrefix = "/" }, "node.path_prefix"},
		{"bad recovery", func(c *ClientConfig) { c.Node.Recovery = "both" }, "node.recovery"},
		{"zero join timeout", func(c *ClientConfig) { c.Node.JoinTimeout = 0 }, "node.join_timeout"},
		{"negative send rate", func(c *ClientConfig) { c.Node.SendRate = -1 }, "node.send_rate"},
		{"duplicate model", func(c *ClientConfig) {
			c.Node.Elements = []ElementSection{{Models: []uint16{0, 0}}}
		}, "node.elements"},
		{"zero call timeout", func(c *ClientConfig) { c.Bus.CallTimeout = 0 }, "bus.call_timeout"},
		{"bad engine", func(c *ClientConfig) { c.Storage.Engine = "sqlite" }, "storage.engine"},
		{"empty token dir", func(c *ClientConfig) { c.Storage.TokenDir = "" }, "storage.token_dir"},
		{"bad gc threshold", func(c *ClientConfig) {
			c.Storage.Engine = "badger"
			c.Storage.Badger.GCThreshold = 1.5
		}, "gc_threshold"},
		{"same storage dirs", func(c *ClientConfig) {
			c.Storage.TokenDir = "/var/lib/meshnode"
			c.Storage.LastTokenDir = "/var/lib/meshnode/"
		}, "must differ"},
		{"last token dir inside token dir", func(c *ClientConfig) {
			c.Storage.TokenDir = "/var/lib/meshnode"
			c.Storage.LastTokenDir = "/var/lib/meshnode/last"
		}, "must not be inside storage.token_dir"},
		{"badger dir inside last token dir", func(c *ClientConfig) {
			c.Storage.Engine = "badger"
			c.Storage.TokenDir = "/var/lib/meshnode/badger"
			c.Storage.LastTokenDir = "/var/lib/meshnode"
		}, "must not be inside storage.last_token_dir"},
		{"file dir inside last token dir", func(c *ClientConfig) {
			c.Storage.TokenDir = "/var/lib/meshnode/token"
			c.Storage.LastTokenDir = "/var/lib/meshnode"
		}, ""},
		{"sibling prefix dirs", func(c *ClientConfig) {
			c.Storage.Engine = "badger"
			c.Storage.TokenDir = "/var/lib/meshnode"
			c.Storage.LastTokenDir = "/var/lib/meshnode-last"
		}, ""},
		{"badger without sync writes", func(c *ClientConfig) {
			c.Storage.Engine = "badger"
			c.Storage.Badger.SyncWrites = false
		}, "sync_writes"},
		{"file engine ignores sync writes", func(c *ClientConfig) {
			c.Storage.Badger.SyncWrites = false
		}, ""},
		{"bad log level", func(c *ClientConfig) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *ClientConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Verify() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyStorage(t *testing.T) {
	cfg := Default()
	if err := VerifyStorage(cfg); err != nil {
		t.Errorf("VerifyStorage() without node.uuid = %v", err)
	}

	cfg.Storage.Engine = "sqlite"
	if err := VerifyStorage(cfg); err == nil || !strings.Contains(err.Error(), "storage.engine") {
		t.Errorf("VerifyStorage() error = %v, want storage.engine", err)
	}
}

func TestNodeSection_Derived(t *testing.T) {
	cfg := validConfig()
	id, err := cfg.Node.Identity()
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.Node.AppPath(id); got != "/org/meshnode/9c791e887acb42e595abab75cb74d774" {
		t.Errorf("AppPath = %q", got)
	}

	cfg.Node.Recovery = "join"
	if p, err := cfg.Node.Policy(); err != nil || p != service.RecoveryJoin {
		t.Errorf("Policy = %v, %v", p, err)
	}
}

func TestNodeSection_DomainElements(t *testing.T) {
	n := NodeSection{}
	els, err := n.DomainElements()
	if err != nil || len(els) != 1 || len(els[0].Models) != 1 || els[0].Models[0] != 0x0000 {
		t.Errorf("default elements = %+v, %v", els, err)
	}

	n.Elements = []ElementSection{
		{Location: 0x0100, Models: []uint16{0x0000, 0x0002}},
		{VendorModels: []VendorModelSection{{CompanyID: 0x0136, ModelID: 0x0001}}},
	}
	els, err = n.DomainElements()
	if err != nil {
		t.Fatal(err)
	}
	if len(els) != 2 || els[1].Index != 1 || els[0].Location != 0x0100 {
		t.Errorf("elements = %+v", els)
	}
	if len(els[1].VendorModels) != 1 || els[1].VendorModels[0].CompanyID != 0x0136 {
		t.Errorf("vendor models = %+v", els[1].VendorModels)
	}
}

func TestExpandPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.Storage.LastTokenDir = "/var/lib/meshnode"
	if err := ExpandPaths(cfg); err != nil {
		t.Fatal(err)
	}

	if want := filepath.Join(home, ".cache/bluetooth-mesh-example"); cfg.Storage.TokenDir != want {
		t.Errorf("TokenDir = %q, want %q", cfg.Storage.TokenDir, want)
	}
	if cfg.Storage.LastTokenDir != "/var/lib/meshnode" {
		t.Errorf("absolute path changed: %q", cfg.Storage.LastTokenDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshnode.yaml")
	content := `
node:
  uuid: "9c791e88-7acb-42e5-95ab-ab75cb74d774"
  recovery: join
  join_timeout: 2m
  elements:
    - location: 1
      models: [0, 4098]
storage:
  engine: badger
  badger:
    gc_interval: 30m
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MESHNODE_BUS_CALL_TIMEOUT", "5s")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if cfg.Node.JoinTimeout != 2*time.Minute {
		t.Errorf("JoinTimeout = %s", cfg.Node.JoinTimeout)
	}
	if cfg.Bus.CallTimeout != 5*time.Second {
		t.Errorf("CallTimeout = %s", cfg.Bus.CallTimeout)
	}
	if len(cfg.Node.Elements) != 1 || cfg.Node.Elements[0].Location != 1 || len(cfg.Node.Elements[0].Models) != 2 {
		t.Errorf("Elements = %+v", cfg.Node.Elements)
	}
	if cfg.Storage.Badger.GCInterval != "30m" || !cfg.Storage.Badger.SyncWrites {
		t.Errorf("Badger = %+v", cfg.Storage.Badger)
	}
	if cfg.Node.SendBurst != DefaultSendBurst {
		t.Errorf("SendBurst = %d, default should survive", cfg.Node.SendBurst)
	}
}
