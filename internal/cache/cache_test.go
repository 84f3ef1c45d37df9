package cache

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/confluence/internal/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStoreGetPut(t *testing.T) {
	store := NewStore(setupDB(t), time.Hour)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "lastfm", "similar:radiohead")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss on empty cache")
	}

	body := []byte(`[{"name":"Portishead","match":0.53}]`)
	if err := store.Put(ctx, "lastfm", "similar:radiohead", body); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, "lastfm", "similar:radiohead")
	if err != nil {
		t.Fatalf("Get after put: %v", err)
	}
	if !ok {
		t.Fatal("expected hit after put")
	}
	if !bytes.Equal(got, body) {
		t.Errorf("expected %s, got %s", body, got)
	}

	// Same key under a different provider is a distinct entry.
	_, ok, err = store.Get(ctx, "spotify", "similar:radiohead")
	if err != nil {
		t.Fatalf("Get other provider: %v", err)
	}
	if ok {
		t.Error("expected miss for a different provider")
	}
}

func TestStorePutReplaces(t *testing.T) {
	store := NewStore(setupDB(t), time.Hour)
	ctx := context.Background()

	if err := store.Put(ctx, "lastfm", "search:blur", []byte("old")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "lastfm", "search:blur", []byte("new")); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	got, ok, err := store.Get(ctx, "lastfm", "search:blur")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "new" {
		t.Errorf("expected new, got %s", got)
	}
}

func TestStoreExpiredEntryIsMiss(t *testing.T) {
	db := setupDB(t)
	expired := NewStore(db, -time.Hour)
	ctx := context.Background()

	if err := expired.Put(ctx, "lastfm", "search:blur", []byte("stale")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, ok, err := expired.Get(ctx, "lastfm", "search:blur")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected expired entry to read as a miss")
	}
}

func TestStorePurge(t *testing.T) {
	db := setupDB(t)
	fresh := NewStore(db, time.Hour)
	stale := NewStore(db, -time.Hour)
	ctx := context.Background()

	if err := fresh.Put(ctx, "lastfm", "search:a", []byte("a")); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}
	if err := stale.Put(ctx, "lastfm", "search:b", []byte("b")); err != nil {
		t.Fatalf("Put stale: %v", err)
	}

	removed, err := fresh.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired entry removed, got %d", removed)
	}

	removed, err = fresh.PurgeAll(ctx)
	if err != nil {
		t.Fatalf("PurgeAll: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 remaining entry removed, got %d", removed)
	}
}
