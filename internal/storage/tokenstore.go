package storage

import (
	"context"
	"fmt"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

// TokenStore maps node identities to the auth tokens issued for them.
//
// Get never fails: an identity with no record yields domain.NoToken.
// Set is durable when it returns nil and leaves the previous value intact
// (on disk and in memory) when it returns an error.
type TokenStore interface {
	// Load reads every persisted record into memory. Any unparseable
	// record fails the whole load with domain.ErrStoreCorruption.
	Load(ctx context.Context) error

	// Get returns the token for id, or domain.NoToken.
	Get(id domain.NodeIdentity) domain.AuthToken

	// Set persists token for id, replacing any previous value.
	Set(ctx context.Context, id domain.NodeIdentity, token domain.AuthToken) error

	// List returns a snapshot of all loaded records.
	List() map[domain.NodeIdentity]domain.AuthToken

	// Close releases backend resources.
	Close() error
}

// Backend names accepted in Config.Engine.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config selects and configures a TokenStore backend.
type Config struct {
	// Engine is BackendFile (default) or BackendBadger.
	Engine string

	// Dir is the token directory (file) or database directory (badger).
	Dir string

	// Badger tunes the badger backend; ignored for the file backend.
	Badger BadgerConfig

	Logger  logger.Logger
	Metrics *metric.Registry
}

// Open constructs the configured backend and loads it.
func Open(ctx context.Context, cfg Config) (TokenStore, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	var store TokenStore
	switch cfg.Engine {
	case "", BackendFile:
		store = NewFileTokenStore(cfg.Dir, log, cfg.Metrics)

	case BackendBadger:
		engine, err := NewBadgerEngine(KVConfig{Dir: cfg.Dir, Badger: cfg.Badger}, logger.Slog(log))
		if err != nil {
			return nil, domain.ErrStorageError.WithDetails("open badger").WithCause(err)
		}
		if cfg.Metrics != nil {
			engine.RegisterMetrics(cfg.Metrics.Registerer())
		}
		store = NewKVTokenStore(engine, log, cfg.Metrics)

	default:
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown storage engine %q", cfg.Engine))
	}

	if err := store.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Debug("token store loaded", "engine", engineName(cfg.Engine), "dir", cfg.Dir, "records", len(store.List()))
	return store, nil
}

func engineName(engine string) string {
	if engine == "" {
		return BackendFile
	}
	return engine
}

func copyTokens(src map[domain.NodeIdentity]domain.AuthToken) map[domain.NodeIdentity]domain.AuthToken {
	out := make(map[domain.NodeIdentity]domain.AuthToken, len(src))
	for id, tok := range src {
		out[id] = tok
	}
	return out
}

func writeResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
