package tables

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/confluence/internal/event"
)

// Store holds the current table snapshot and swaps it atomically when
// the overlay file changes. Readers always see a complete snapshot.
type Store struct {
	path     string
	logger   *slog.Logger
	bus      *event.Bus
	debounce time.Duration
	current  atomic.Pointer[Snapshot]
}

// NewStore loads the tables (defaults plus the overlay at path, which
// may be empty) and returns a store serving them.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	st := &Store{
		path:     path,
		logger:   logger.With(slog.String("component", "tables")),
		debounce: 500 * time.Millisecond,
	}
	st.current.Store(snap)
	return st, nil
}

// Static returns a store pinned to the given snapshot. Used by tests
// and callers that do not reload.
func Static(snap *Snapshot) *Store {
	st := &Store{logger: slog.Default()}
	st.current.Store(snap)
	return st
}

// Current returns the active snapshot. The returned value is immutable.
func (st *Store) Current() *Snapshot {
	return st.current.Load()
}

// SetEventBus wires an event bus for reload notifications.
func (st *Store) SetEventBus(bus *event.Bus) {
	st.bus = bus
}

// SetDebounce overrides the reload debounce interval (for testing).
func (st *Store) SetDebounce(d time.Duration) {
	st.debounce = d
}

// Reload re-reads the overlay file and swaps in the new snapshot. On
// error the previous snapshot stays active.
func (st *Store) Reload() error {
	snap, err := Load(st.path)
	if err != nil {
		return err
	}
	st.current.Store(snap)
	st.logger.Info("tables reloaded",
		slog.Int("known_names", len(snap.KnownNames)),
		slog.Int("denylist", len(snap.Denylist)),
		slog.Int("overrides", len(snap.Overrides)),
	)
	if st.bus != nil {
		st.bus.Publish(event.Event{
			Type: event.TablesReloaded,
			Data: map[string]any{
				"path":      st.path,
				"overrides": len(snap.Overrides),
			},
		})
	}
	return nil
}

// Watch blocks until ctx is canceled, reloading the overlay whenever it
// changes on disk. Editors typically replace files by rename, so the
// parent directory is watched and events are filtered to the overlay
// path. Reload errors keep the previous snapshot.
func (st *Store) Watch(ctx context.Context) {
	if st.path == "" {
		return
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		st.logger.Warn("fsnotify unavailable, table reload disabled", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(st.path)
	if err := w.Add(dir); err != nil {
		st.logger.Warn("cannot watch table overlay directory", "path", dir, "error", err)
		return
	}

	// Debounce timer for coalescing editor write bursts. Starts
	// stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	reloadPending := false
	target := filepath.Clean(st.path)

	st.logger.Info("watching table overlay", slog.String("path", st.path))

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(st.debounce)
			reloadPending = true

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			st.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if reloadPending {
				reloadPending = false
				if err := st.Reload(); err != nil {
					st.logger.Error("table reload failed, keeping previous tables", "error", err)
				}
			}
		}
	}
}
