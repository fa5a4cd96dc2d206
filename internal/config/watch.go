package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "invitecal/internal/log"
)

// watchDebounce absorbs the burst of events editors produce on save
// (truncate, write, chmod, rename).
const watchDebounce = 250 * time.Millisecond

// Watch reloads the config at path whenever it changes on disk and passes
// the result to onChange. A file that fails to load is logged and skipped,
// leaving the caller's previous configuration in effect. Watch blocks until
// ctx is done.
//
// The parent directory is watched rather than the file itself so atomic
// replace-by-rename saves keep being observed.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	appLog.Info("watching config for changes", "path", abs)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("config watcher error", err, "path", abs)

		case <-pending:
			pending = nil
			cfg, err := Read(abs)
			if err != nil {
				appLog.Error("config reload failed; keeping previous config", err, "path", abs)
				continue
			}
			appLog.Info("config reloaded", "path", abs)
			onChange(cfg)
		}
	}
}
