package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestBoltStore(t)

	snap := New("sess-1")
	snap.Set("theme", "dark")
	if err := store.Save(ctx, snap, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("snapshot not found")
	}
	var theme string
	if ok, _ := loaded.Get("theme", &theme); !ok || theme != "dark" {
		t.Errorf("theme = %q, ok = %v", theme, ok)
	}

	if missing, err := store.Load(ctx, "other"); err != nil || missing != nil {
		t.Errorf("missing session: snap = %v, err = %v", missing, err)
	}
}

func TestBoltStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newTestBoltStore(t)

	first := New("sess-1")
	first.Set("n", 1)
	store.Save(ctx, first, time.Now().Add(time.Hour))

	second := New("sess-1")
	second.Set("n", 2)
	store.Save(ctx, second, time.Now().Add(time.Hour))

	loaded, err := store.Load(ctx, "sess-1")
	if err != nil || loaded == nil {
		t.Fatalf("load failed: snap = %v, err = %v", loaded, err)
	}
	var n int
	loaded.Get("n", &n)
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}

func TestBoltStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestBoltStore(t)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	store.Save(ctx, New("sess-1"), clock.Add(time.Minute))

	clock = clock.Add(2 * time.Minute)
	if snap, err := store.Load(ctx, "sess-1"); err != nil || snap != nil {
		t.Errorf("expired snapshot: snap = %v, err = %v", snap, err)
	}

	// Touch before expiry keeps it alive.
	store.Save(ctx, New("sess-2"), clock.Add(time.Minute))
	if err := store.Touch(ctx, "sess-2", clock.Add(time.Hour)); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	clock = clock.Add(30 * time.Minute)
	if snap, _ := store.Load(ctx, "sess-2"); snap == nil {
		t.Error("touched snapshot expired")
	}
}

func TestBoltStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestBoltStore(t)

	store.Save(ctx, New("sess-1"), time.Now().Add(time.Hour))
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if snap, _ := store.Load(ctx, "sess-1"); snap != nil {
		t.Error("snapshot survived delete")
	}
}
