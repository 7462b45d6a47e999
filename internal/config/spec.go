package config

import (
	"time"

	"github.com/yndnr/meshnode-go/internal/storage"
)

// ClientConfig is the root configuration for meshnode.
type ClientConfig struct {
	Node    NodeSection    `koanf:"node"`
	Bus     BusSection     `koanf:"bus"`
	Storage StorageSection `koanf:"storage"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// NodeSection configures the mesh node identity and attach behavior.
type NodeSection struct {
	// UUID is the node identity. Required.
	UUID string `koanf:"uuid"`

	// PathPrefix is the bus path under which the application is exported
	// as <prefix>/<uuid hex>.
	PathPrefix string `koanf:"path_prefix"`

	// Recovery is "import" or "join".
	Recovery string `koanf:"recovery"`

	// JoinTimeout bounds the wait for the daemon's join callback.
	JoinTimeout time.Duration `koanf:"join_timeout"`

	// SendRate limits outbound messages per second; 0 disables limiting.
	SendRate float64 `koanf:"send_rate"`

	// SendBurst is the send limiter bucket size.
	SendBurst int `koanf:"send_burst"`

	// Elements are the local elements in index order.
	Elements []ElementSection `koanf:"elements"`
}

// ElementSection describes one local element.
type ElementSection struct {
	Location     uint16               `koanf:"location"`
	Models       []uint16             `koanf:"models"`
	VendorModels []VendorModelSection `koanf:"vendor_models"`
}

// VendorModelSection names a vendor model.
type VendorModelSection struct {
	CompanyID uint16 `koanf:"company_id"`
	ModelID   uint16 `koanf:"model_id"`
}

// BusSection configures the D-Bus connection.
type BusSection struct {
	// Address is a D-Bus address; empty selects the system bus.
	Address string `koanf:"address"`

	// CallTimeout bounds each remote call.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// StorageSection configures token persistence.
type StorageSection struct {
	// Engine is "file" or "badger".
	Engine string `koanf:"engine"`

	// TokenDir holds the per-node token records.
	TokenDir string `koanf:"token_dir"`

	// LastTokenDir holds token.txt, the last token delivered by JoinComplete.
	LastTokenDir string `koanf:"last_token_dir"`

	// Badger tunes the badger engine.
	Badger storage.BadgerConfig `koanf:"badger"`
}

// MetricsSection configures the status listener.
type MetricsSection struct {
	// Addr is the listen address for /metrics, /health and /state.
	// Empty disables the listener.
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
