package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
	"github.com/yndnr/meshnode-go/internal/telemetry/metric"
)

const (
	testNodeA = "9c791e88-7acb-42e5-95ab-ab75cb74d774"
	testNodeB = "0f5c6b1e-2a0d-4b6e-8f5e-3b7e7a0c1d22"
)

func newTestFileStore(t *testing.T, dir string) *FileTokenStore {
	t.Helper()
	s := NewFileTokenStore(dir, logger.Discard(), nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestFileTokenStore_RoundTripAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	id := domain.MustParseNodeIdentity(testNodeA)

	s := newTestFileStore(t, dir)
	if err := s.Set(ctx, id, 0x9dbbbf60c5376e3); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, testNodeA))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "9dbbbf60c5376e3" {
		t.Errorf("file content = %q, want %q", data, "9dbbbf60c5376e3")
	}

	restarted := newTestFileStore(t, dir)
	if got := restarted.Get(id); got != 0x9dbbbf60c5376e3 {
		t.Errorf("Get after restart = %s, want 9dbbbf60c5376e3", got)
	}
}

func TestFileTokenStore_AbsentIsZero(t *testing.T) {
	s := newTestFileStore(t, t.TempDir())
	if got := s.Get(domain.MustParseNodeIdentity(testNodeA)); got != domain.NoToken {
		t.Errorf("Get on empty store = %s, want 0", got)
	}
}

func TestFileTokenStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tokens")
	newTestFileStore(t, dir)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected a directory")
	}
	if perm := info.Mode().Perm(); perm != dirPerm {
		t.Errorf("dir perm = %o, want %o", perm, dirPerm)
	}
}

func TestFileTokenStore_Overwrite(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a := domain.MustParseNodeIdentity(testNodeA)
	b := domain.MustParseNodeIdentity(testNodeB)

	s := newTestFileStore(t, dir)
	for _, tok := range []domain.AuthToken{1, 0xff, 0xabcdef} {
		if err := s.Set(ctx, a, tok); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set(ctx, b, 7); err != nil {
		t.Fatal(err)
	}

	restarted := newTestFileStore(t, dir)
	list := restarted.List()
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	if list[a] != 0xabcdef || list[b] != 7 {
		t.Errorf("List = %v", list)
	}
}

func TestFileTokenStore_Corruption(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name: "non-hex content",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, testNodeA), "not-hex")
			},
		},
		{
			name: "empty file",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, testNodeA), "")
			},
		},
		{
			name: "prefixed hex",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, testNodeA), "0x1f")
			},
		},
		{
			name: "overflow",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, testNodeA), "1ffffffffffffffff")
			},
		},
		{
			name: "non-uuid file name",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "README"), "1")
			},
		},
		{
			name: "non-canonical file name",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "9C791E887ACB42E595ABAB75CB74D774"), "1")
			},
		},
		{
			name: "subdirectory",
			setup: func(t *testing.T, dir string) {
				if err := os.Mkdir(filepath.Join(dir, testNodeA), 0o700); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			s := NewFileTokenStore(dir, logger.Discard(), nil)
			err := s.Load(context.Background())
			if !errors.Is(err, domain.ErrStoreCorruption) {
				t.Errorf("Load error = %v, want ErrStoreCorruption", err)
			}
		})
	}
}

func TestFileTokenStore_TrailingNewlineAccepted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, testNodeA), "9dbbbf60c5376e3\n")

	s := newTestFileStore(t, dir)
	if got := s.Get(domain.MustParseNodeIdentity(testNodeA)); got != 0x9dbbbf60c5376e3 {
		t.Errorf("Get = %s", got)
	}
}

func TestFileTokenStore_RemovesPartialWrites(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, ".tmp-"+testNodeA+"123")
	writeFile(t, partial, "9d")
	writeFile(t, filepath.Join(dir, testNodeA), "1")

	s := newTestFileStore(t, dir)
	if got := s.Get(domain.MustParseNodeIdentity(testNodeA)); got != 1 {
		t.Errorf("Get = %s, want 1", got)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Errorf("expected partial write to be removed, stat err = %v", err)
	}
}

func TestFileTokenStore_FailedSetKeepsPrevious(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	ctx := context.Background()
	id := domain.MustParseNodeIdentity(testNodeA)

	s := newTestFileStore(t, dir)
	if err := s.Set(ctx, id, 1); err != nil {
		t.Fatal(err)
	}

	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o700)

	err := s.Set(ctx, id, 2)
	if !errors.Is(err, domain.ErrStorageError) {
		t.Fatalf("Set error = %v, want ErrStorageError", err)
	}
	if got := s.Get(id); got != 1 {
		t.Errorf("Get after failed Set = %s, want 1", got)
	}
}

func TestFileTokenStore_RejectsNilIdentity(t *testing.T) {
	s := newTestFileStore(t, t.TempDir())
	err := s.Set(context.Background(), domain.NilIdentity, 1)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Set(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFileTokenStore_ConcurrentSet(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	id := domain.MustParseNodeIdentity(testNodeA)
	s := newTestFileStore(t, dir)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(tok domain.AuthToken) {
			defer wg.Done()
			if err := s.Set(ctx, id, tok); err != nil {
				t.Error(err)
			}
		}(domain.AuthToken(i))
	}
	wg.Wait()

	restarted := newTestFileStore(t, dir)
	if restarted.Get(id) != s.Get(id) {
		t.Errorf("disk %s != memory %s", restarted.Get(id), s.Get(id))
	}
}

func TestFileTokenStore_RecordsWrites(t *testing.T) {
	reg := metric.NewRegistry()
	s := NewFileTokenStore(t.TempDir(), logger.Discard(), reg)
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), domain.MustParseNodeIdentity(testNodeA), 5); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(reg.TokenWrites.WithLabelValues(BackendFile, "ok")); got != 1 {
		t.Errorf("token writes = %v, want 1", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
