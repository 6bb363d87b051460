package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/flame"
)

// watchLag coalesces the bursts of events editors produce for one save.
const watchLag = 100 * time.Millisecond

// watch calls reload after the file at path changes, until ctx is done.
// The parent directory is watched so that saves which replace the file
// are seen.
func watch(ctx context.Context, path string, reload func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	flame.Logger().Info("flame: watching scene", "path", path)

	timer := time.NewTimer(watchLag)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if touches(ev, path) {
				timer.Reset(watchLag)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			flame.Logger().Warn("flame: watch error", "err", err)
		case <-timer.C:
			if err := reload(); err != nil {
				flame.Logger().Error("flame: reload failed, keeping previous scene", "err", err)
			}
		}
	}
}

// touches reports whether ev may have changed the contents of path.
func touches(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
