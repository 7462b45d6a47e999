package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/moby/sys/atomicwriter"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600

	// Leftovers of an interrupted atomic write start with this prefix.
	tempPrefix = "."
)

// FileTokenStore keeps one file per identity in a directory it owns.
type FileTokenStore struct {
	dir     string
	logger  logger.Logger
	metrics *metric.Registry

	mu     sync.RWMutex
	tokens map[domain.NodeIdentity]domain.AuthToken
}

// NewFileTokenStore creates a store rooted at dir. Nothing is read until Load.
func NewFileTokenStore(dir string, log logger.Logger, metrics *metric.Registry) *FileTokenStore {
	if log == nil {
		log = logger.Default()
	}
	return &FileTokenStore{
		dir:     dir,
		logger:  log.With("component", "token_store", "backend", BackendFile),
		metrics: metrics,
		tokens:  make(map[domain.NodeIdentity]domain.AuthToken),
	}
}

// Dir returns the token directory.
func (s *FileTokenStore) Dir() string {
	return s.dir
}

// Load creates the directory if needed and parses every file in it.
func (s *FileTokenStore) Load(ctx context.Context) error {
	if s.dir == "" {
		return domain.ErrInvalidArgument.WithDetails("token directory is empty")
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return domain.ErrStorageError.WithDetails("create " + s.dir).WithCause(err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return domain.ErrStorageError.WithDetails("read " + s.dir).WithCause(err)
	}

	tokens := make(map[domain.NodeIdentity]domain.AuthToken, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		path := filepath.Join(s.dir, name)

		if strings.HasPrefix(name, tempPrefix) && entry.Type().IsRegular() {
			s.logger.Warn("removing partial write", "path", path)
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return domain.ErrStorageError.WithDetails("remove " + path).WithCause(err)
			}
			continue
		}

		id, tok, err := readTokenFile(path, entry)
		if err != nil {
			return err
		}
		tokens[id] = tok
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

func readTokenFile(path string, entry fs.DirEntry) (domain.NodeIdentity, domain.AuthToken, error) {
	name := entry.Name()
	if !entry.Type().IsRegular() {
		return domain.NilIdentity, domain.NoToken, domain.ErrStoreCorruption.WithDetails(path + " is not a regular file")
	}

	id, err := domain.ParseNodeIdentity(name)
	if err != nil || id.String() != name {
		return domain.NilIdentity, domain.NoToken, domain.ErrStoreCorruption.
			WithDetails(fmt.Sprintf("file name %q is not a canonical node identity", name))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NilIdentity, domain.NoToken, domain.ErrStorageError.WithDetails("read " + path).WithCause(err)
	}

	tok, err := domain.ParseAuthToken(string(data))
	if err != nil {
		return domain.NilIdentity, domain.NoToken, domain.ErrStoreCorruption.
			WithDetails("file " + path).WithCause(err)
	}
	return id, tok, nil
}

// Get returns the loaded token for id.
func (s *FileTokenStore) Get(id domain.NodeIdentity) domain.AuthToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[id]
}

// Set writes the token file atomically, then updates the in-memory map.
// The write lock is held across the write so concurrent Sets land on disk
// in the same order they land in memory.
func (s *FileTokenStore) Set(ctx context.Context, id domain.NodeIdentity, token domain.AuthToken) error {
	if id.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("nil node identity")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, id.String())

	s.mu.Lock()
	defer s.mu.Unlock()

	err := atomicwriter.WriteFile(path, []byte(token.String()), filePerm)
	s.metrics.RecordTokenWrite(BackendFile, writeResult(err))
	if err != nil {
		return domain.ErrStorageError.WithDetails("write " + path).WithCause(err)
	}

	s.tokens[id] = token
	s.logger.Debug("token saved", "node", id.String(), "path", path)
	return nil
}

// List returns a copy of all loaded records.
func (s *FileTokenStore) List() map[domain.NodeIdentity]domain.AuthToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTokens(s.tokens)
}

// Close is a no-op; every Set is already on disk.
func (s *FileTokenStore) Close() error {
	return nil
}
