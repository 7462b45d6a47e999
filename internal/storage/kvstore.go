package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

const tokenKeyPrefix = "token/"

// KVTokenStore keeps token records in a KVEngine under "token/<identity>".
type KVTokenStore struct {
	engine  KVEngine
	logger  logger.Logger
	metrics *metric.Registry

	mu     sync.RWMutex
	tokens map[domain.NodeIdentity]domain.AuthToken
}

// NewKVTokenStore wraps engine. The store owns the engine and closes it.
func NewKVTokenStore(engine KVEngine, log logger.Logger, metrics *metric.Registry) *KVTokenStore {
	if log == nil {
		log = logger.Default()
	}
	return &KVTokenStore{
		engine:  engine,
		logger:  log.With("component", "token_store", "backend", BackendBadger),
		metrics: metrics,
		tokens:  make(map[domain.NodeIdentity]domain.AuthToken),
	}
}

func tokenKey(id domain.NodeIdentity) []byte {
	return []byte(tokenKeyPrefix + id.String())
}

// Load scans every token record.
func (s *KVTokenStore) Load(ctx context.Context) error {
	tokens := make(map[domain.NodeIdentity]domain.AuthToken)

	var parseErr error
	err := s.engine.Scan(ctx, []byte(tokenKeyPrefix), func(key, value []byte) bool {
		name := strings.TrimPrefix(string(key), tokenKeyPrefix)
		id, err := domain.ParseNodeIdentity(name)
		if err != nil || id.String() != name {
			parseErr = domain.ErrStoreCorruption.WithDetails(fmt.Sprintf("key %q is not a canonical node identity", key))
			return false
		}
		tok, err := domain.ParseAuthToken(string(value))
		if err != nil {
			parseErr = domain.ErrStoreCorruption.WithDetails(fmt.Sprintf("key %q", key)).WithCause(err)
			return false
		}
		tokens[id] = tok
		return true
	})
	if err != nil {
		return domain.ErrStorageError.WithDetails("scan tokens").WithCause(err)
	}
	if parseErr != nil {
		return parseErr
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// Get returns the loaded token for id.
func (s *KVTokenStore) Get(id domain.NodeIdentity) domain.AuthToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[id]
}

// Set writes the record, then updates the in-memory map.
func (s *KVTokenStore) Set(ctx context.Context, id domain.NodeIdentity, token domain.AuthToken) error {
	if id.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("nil node identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.engine.Set(ctx, tokenKey(id), []byte(token.String()))
	s.metrics.RecordTokenWrite(BackendBadger, writeResult(err))
	if err != nil {
		return domain.ErrStorageError.WithDetails("write " + string(tokenKey(id))).WithCause(err)
	}

	s.tokens[id] = token
	s.logger.Debug("token saved", "node", id.String())
	return nil
}

// List returns a copy of all loaded records.
func (s *KVTokenStore) List() map[domain.NodeIdentity]domain.AuthToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTokens(s.tokens)
}

// Close closes the underlying engine.
func (s *KVTokenStore) Close() error {
	return s.engine.Close()
}
