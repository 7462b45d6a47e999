package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/core/service"
	"github.com/yndnr/meshnode-go/internal/storage"
)

// Verify validates the configuration.
func Verify(cfg *ClientConfig) error {
	if err := verifyNode(&cfg.Node); err != nil {
		return err
	}
	if err := verifyBus(&cfg.Bus); err != nil {
		return err
	}
	return VerifyStorage(cfg)
}

// VerifyStorage validates only the storage and log sections. Commands that
// operate on the token store offline use it so node.uuid is not required.
func VerifyStorage(cfg *ClientConfig) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyNode(cfg *NodeSection) error {
	if cfg.UUID == "" {
		return errors.New("node.uuid is required")
	}
	if _, err := domain.ParseNodeIdentity(cfg.UUID); err != nil {
		return fmt.Errorf("node.uuid: %w", err)
	}
	if cfg.PathPrefix == "/" || !dbus.ObjectPath(cfg.PathPrefix).IsValid() {
		return fmt.Errorf("node.path_prefix %q is not a valid object path", cfg.PathPrefix)
	}
	if _, err := service.ParseRecoveryPolicy(cfg.Recovery); err != nil {
		return fmt.Errorf("node.recovery: %w", err)
	}
	if cfg.JoinTimeout <= 0 {
		return errors.New("node.join_timeout must be positive")
	}
	if cfg.SendRate < 0 {
		return errors.New("node.send_rate must not be negative")
	}
	if cfg.SendBurst < 0 {
		return errors.New("node.send_burst must not be negative")
	}
	if _, err := cfg.DomainElements(); err != nil {
		return fmt.Errorf("node.elements: %w", err)
	}
	return nil
}

func verifyBus(cfg *BusSection) error {
	if cfg.CallTimeout <= 0 {
		return errors.New("bus.call_timeout must be positive")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Engine {
	case storage.BackendFile, storage.BackendBadger:
	default:
		return fmt.Errorf("storage.engine %q must be %q or %q", cfg.Engine, storage.BackendFile, storage.BackendBadger)
	}
	if cfg.TokenDir == "" {
		return errors.New("storage.token_dir is required")
	}
	if cfg.LastTokenDir == "" {
		return errors.New("storage.last_token_dir is required")
	}
	if err := verifyStorageDirs(cfg); err != nil {
		return err
	}
	if cfg.Engine == storage.BackendBadger {
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be between 0 and 1")
		}
		if !cfg.Badger.SyncWrites {
			return errors.New("storage.badger.sync_writes must be true: token writes are durable before Set returns")
		}
	}
	return nil
}

// verifyStorageDirs keeps the last-token record out of the directory the
// token store owns. Any foreign entry there fails the next Load.
func verifyStorageDirs(cfg *StorageSection) error {
	tokenDir := filepath.Clean(cfg.TokenDir)
	lastDir := filepath.Clean(cfg.LastTokenDir)

	if tokenDir == lastDir {
		return fmt.Errorf("storage.last_token_dir %q must differ from storage.token_dir", cfg.LastTokenDir)
	}
	if isWithin(tokenDir, lastDir) {
		return fmt.Errorf("storage.last_token_dir %q must not be inside storage.token_dir %q", cfg.LastTokenDir, cfg.TokenDir)
	}
	if cfg.Engine == storage.BackendBadger && isWithin(lastDir, tokenDir) {
		return fmt.Errorf("storage.token_dir %q must not be inside storage.last_token_dir %q", cfg.TokenDir, cfg.LastTokenDir)
	}
	return nil
}

// isWithin reports whether child is strictly below parent. Both paths
// must be clean.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}

// Identity returns the parsed node identity.
func (n NodeSection) Identity() (domain.NodeIdentity, error) {
	return domain.ParseNodeIdentity(n.UUID)
}

// AppPath returns the application bus path for id.
func (n NodeSection) AppPath(id domain.NodeIdentity) string {
	return strings.TrimSuffix(n.PathPrefix, "/") + "/" + id.Hex()
}

// Policy returns the parsed recovery policy.
func (n NodeSection) Policy() (service.RecoveryPolicy, error) {
	return service.ParseRecoveryPolicy(n.Recovery)
}

// DomainElements converts the configured elements, indexed by position.
// An empty list yields the default single element.
func (n NodeSection) DomainElements() ([]domain.Element, error) {
	if len(n.Elements) == 0 {
		return domain.DefaultElements(), nil
	}
	if len(n.Elements) > 0xff {
		return nil, domain.ErrInvalidArgument.WithDetails("too many elements")
	}
	elements := make([]domain.Element, len(n.Elements))
	for i, e := range n.Elements {
		vendor := make([]domain.VendorModel, 0, len(e.VendorModels))
		for _, vm := range e.VendorModels {
			vendor = append(vendor, domain.VendorModel{CompanyID: vm.CompanyID, ModelID: vm.ModelID})
		}
		elements[i] = domain.Element{
			Index:        uint8(i),
			Location:     e.Location,
			Models:       e.Models,
			VendorModels: vendor,
		}
	}
	return domain.NewElements(elements)
}
