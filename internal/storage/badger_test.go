package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestBadger(t *testing.T, dir string) *BadgerEngine {
	t.Helper()

	cfg := DefaultKVConfig(dir)
	cfg.Badger.GCInterval = "1h" // no auto GC during tests

	engine, err := NewBadgerEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		key := []byte("test-key")
		value := []byte("test-value")

		if err := engine.Set(ctx, key, value); err != nil {
			t.Fatal(err)
		}

		got, err := engine.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}

		if string(got) != string(value) {
			t.Errorf("expected %s, got %s", value, got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("non-existent"))
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := []byte("delete-key")

		if err := engine.Set(ctx, key, []byte("v")); err != nil {
			t.Fatal(err)
		}
		if err := engine.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}

		_, err := engine.Get(ctx, key)
		if err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
		}
	})
}

func TestBadgerEngine_Scan(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := engine.Set(ctx, []byte(fmt.Sprintf("token/%d", i)), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := engine.Set(ctx, []byte("other/1"), []byte("y")); err != nil {
		t.Fatal(err)
	}

	t.Run("prefix only", func(t *testing.T) {
		count := 0
		err := engine.Scan(ctx, []byte("token/"), func(key, value []byte) bool {
			count++
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 5 {
			t.Errorf("expected 5 keys, got %d", count)
		}
	})

	t.Run("early stop", func(t *testing.T) {
		count := 0
		err := engine.Scan(ctx, []byte("token/"), func(key, value []byte) bool {
			count++
			return count < 2
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("expected scan to stop after 2 keys, got %d", count)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := engine.Scan(cctx, []byte("token/"), func(key, value []byte) bool { return true })
		if err == nil {
			t.Error("expected error from cancelled scan")
		}
	})
}

func TestBadgerEngine_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	engine := newTestBadger(t, dir)
	if err := engine.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := newTestBadger(t, dir)
	defer reopened.Close()

	got, err := reopened.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v" {
		t.Errorf("expected v after reopen, got %s", got)
	}
}

func TestBadgerEngine_GCAndStats(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	ctx := context.Background()

	if _, err := engine.GC(ctx); err != nil {
		t.Fatalf("GC failed: %v", err)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.LastGCTime == 0 {
		t.Error("expected LastGCTime to be set after GC")
	}
	if stats.TotalSize != stats.LSMSize+stats.ValueLogSize {
		t.Errorf("TotalSize %d != LSM %d + vlog %d", stats.TotalSize, stats.LSMSize, stats.ValueLogSize)
	}
}

func TestBadgerEngine_Closed(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	ctx := context.Background()
	if _, err := engine.Get(ctx, []byte("k")); err != ErrClosed {
		t.Errorf("Get after Close: expected ErrClosed, got %v", err)
	}
	if err := engine.Set(ctx, []byte("k"), nil); err != ErrClosed {
		t.Errorf("Set after Close: expected ErrClosed, got %v", err)
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	if n := testutil.CollectAndCount(engine.metricsLSMSize); n != 1 {
		t.Errorf("expected lsm gauge to be collectable, got %d", n)
	}

	if _, err := engine.GC(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(engine.metricsGCRuns); got < 0 {
		t.Errorf("unexpected gc counter %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 4 {
		t.Errorf("expected 4 badger metric families, got %d", len(families))
	}
}
