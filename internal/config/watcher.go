package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads store whenever its file changes, until ctx is done. The
// directory is watched rather than the file so editors that replace the
// file on save are still seen.
func Watch(ctx context.Context, store *Store, logger *log.Logger) error {
	path, err := filepath.Abs(store.Path())
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		// Editors often write a file in several steps; coalesce them.
		timer := time.NewTimer(reloadDebounce)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					timer.Reset(reloadDebounce)
				}

			case <-timer.C:
				if err := store.Reload(); err != nil {
					logger.Error("config reload failed, keeping previous configuration", "path", path, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path, "projects", len(store.Projects()))

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
