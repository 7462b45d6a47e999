package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/meshnode-go/internal/storage"
)

// Default configuration values.
const (
	DefaultPathPrefix  = "/org/meshnode"
	DefaultRecovery    = "import"
	DefaultJoinTimeout = 60 * time.Second
	DefaultSendRate    = 10
	DefaultSendBurst   = 4

	DefaultCallTimeout = 30 * time.Second

	DefaultStorageEngine = storage.BackendFile
	DefaultTokenDir      = "~/.cache/bluetooth-mesh-example"
	DefaultLastTokenDir  = "~/.cache/bluetooth-meshd-example"

	DefaultLogLevel  = "debug"
	DefaultLogFormat = "text"
)

// Default returns the default client configuration.
func Default() *ClientConfig {
	return &ClientConfig{
		Node: NodeSection{
			PathPrefix:  DefaultPathPrefix,
			Recovery:    DefaultRecovery,
			JoinTimeout: DefaultJoinTimeout,
			SendRate:    DefaultSendRate,
			SendBurst:   DefaultSendBurst,
		},
		Bus: BusSection{
			CallTimeout: DefaultCallTimeout,
		},
		Storage: StorageSection{
			Engine:       DefaultStorageEngine,
			TokenDir:     DefaultTokenDir,
			LastTokenDir: DefaultLastTokenDir,
			Badger:       storage.DefaultBadgerConfig(),
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ExpandPaths replaces a leading "~" in the storage paths with the user's
// home directory.
func ExpandPaths(cfg *ClientConfig) error {
	for _, p := range []*string{&cfg.Storage.TokenDir, &cfg.Storage.LastTokenDir} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
