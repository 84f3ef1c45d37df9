package tables

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sydlexius/confluence/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_Static(t *testing.T) {
	st := Static(Defaults())
	if st.Current() == nil {
		t.Fatal("Current returned nil snapshot")
	}
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	if err := os.WriteFile(path, []byte("relation_scores:\n  remix: {similarity: 0.6, distance: 3.0}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if sc, ok := st.Current().Score("remix"); !ok || sc.Similarity != 0.6 {
		t.Fatalf("Score(remix) = %+v ok=%v, want initial overlay", sc, ok)
	}

	if err := os.WriteFile(path, []byte("relation_scores:\n  remix: {similarity: 0.7, distance: 3.0}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := st.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if sc, _ := st.Current().Score("remix"); sc.Similarity != 0.7 {
		t.Errorf("Score(remix) after reload = %+v, want 0.7", sc)
	}
}

func TestStore_ReloadErrorKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	if err := os.WriteFile(path, []byte("relation_scores:\n  remix: {similarity: 0.6, distance: 3.0}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	before := st.Current()

	if err := os.WriteFile(path, []byte("relation_scores: [broken\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := st.Reload(); err == nil {
		t.Fatal("Reload accepted a broken overlay")
	}
	if st.Current() != before {
		t.Error("broken reload replaced the active snapshot")
	}
}

func TestStore_ReloadPublishesEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	if err := os.WriteFile(path, []byte("korean_artists: [newjeans]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	bus := event.NewBus(testLogger(), 16)
	var got atomic.Int64
	bus.Subscribe(event.TablesReloaded, func(event.Event) { got.Add(1) })
	go bus.Start()
	defer bus.Stop()
	st.SetEventBus(bus)

	if err := st.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for got.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got.Load() == 0 {
		t.Error("no tables.reloaded event received")
	}
}

func TestStore_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	if err := os.WriteFile(path, []byte("relation_scores:\n  remix: {similarity: 0.6, distance: 3.0}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	st.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		st.Watch(ctx)
		close(done)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("relation_scores:\n  remix: {similarity: 0.9, distance: 3.0}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sc, _ := st.Current().Score("remix"); sc.Similarity == 0.9 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if sc, _ := st.Current().Score("remix"); sc.Similarity != 0.9 {
		t.Errorf("Score(remix) = %+v, want reload to 0.9 after file change", sc)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Watch did not return after context cancel")
	}
}
