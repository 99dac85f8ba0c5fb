package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 300 * time.Millisecond

// Watch hot-reloads the on-disk template set whenever a file in the template
// directory changes. It returns immediately when the templates are embedded.
// Intended for development; blocks until ctx is cancelled.
func (t *Templates) Watch(ctx context.Context, logger *slog.Logger) {
	if t.dir == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("template watcher unavailable", slog.String("error", err.Error()))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(t.dir); err != nil {
		logger.Warn("failed to watch template dir",
			slog.String("dir", t.dir),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("watching templates for changes", slog.String("dir", t.dir))

	var debounce *time.Timer
	reload := func() {
		if err := t.Reload(); err != nil {
			logger.Warn("template reload failed", slog.String("error", err.Error()))
			return
		}
		logger.Info("templates reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Editors fire bursts of events per save; collapse them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("template watcher error", slog.String("error", err.Error()))
		}
	}
}
