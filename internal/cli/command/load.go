package command

import (
	"fmt"
	"os"

	"github.com/yndnr/meshnode-go/internal/config"
	"github.com/yndnr/meshnode-go/internal/infra/confloader"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
)

// loadConfig builds the configuration from defaults, the optional file,
// MESHNODE_* environment variables and flag overrides, in rising priority.
// verify selects how much of the result must be valid.
func loadConfig(path string, overrides map[string]any, verify func(*config.ClientConfig) error) (*config.ClientConfig, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	if path != "" {
		if err := loader.LoadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.ExpandPaths(cfg); err != nil {
		return nil, err
	}
	if err := verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger and installs it as the default.
func initLogger(cfg *config.ClientConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// setOverride records a flag value under a dotted config key when the
// flag was given.
func setOverride(m map[string]any, key string, set bool, value any) {
	if set {
		m[key] = value
	}
}
