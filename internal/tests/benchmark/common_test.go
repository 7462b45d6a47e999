package benchmark

import (
	"context"
	"math/rand"
	"testing"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/storage"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
)

// NodeCounts defines the store sizes for load benchmarks.
var NodeCounts = []int{10, 100, 1000}

// Backends are the token store engines under test.
var Backends = []string{storage.BackendFile, storage.BackendBadger}

// openStore opens a fresh store of the given backend in a temp dir.
func openStore(b *testing.B, backend, dir string) storage.TokenStore {
	b.Helper()
	store, err := storage.Open(context.Background(), storage.Config{
		Engine: backend,
		Dir:    dir,
		Badger: storage.DefaultBadgerConfig(),
		Logger: logger.Discard(),
	})
	if err != nil {
		b.Fatalf("open %s store: %v", backend, err)
	}
	return store
}

// newIdentities generates n distinct node identities.
func newIdentities(b *testing.B, n int) []domain.NodeIdentity {
	b.Helper()
	ids := make([]domain.NodeIdentity, n)
	for i := range ids {
		id, err := domain.GenerateNodeIdentity()
		if err != nil {
			b.Fatalf("generate identity: %v", err)
		}
		ids[i] = id
	}
	return ids
}

// randomToken returns a non-zero token.
func randomToken() domain.AuthToken {
	return domain.AuthToken(rand.Uint64() | 1)
}

// prefillStore stores one token per identity.
func prefillStore(b *testing.B, store storage.TokenStore, ids []domain.NodeIdentity) {
	b.Helper()
	ctx := context.Background()
	for _, id := range ids {
		if err := store.Set(ctx, id, randomToken()); err != nil {
			b.Fatalf("prefill: %v", err)
		}
	}
}
