package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/talentops/skillgate/internal/audit"
)

// Reloader watches the audit policy file for changes and hot-swaps the
// recorder's policy.
type Reloader struct {
	watcher  *fsnotify.Watcher
	recorder *audit.Recorder
	path     string
	logger   *slog.Logger
}

// NewReloader creates a file watcher for the given policy path. A missing
// file is not an error; the reloader simply idles until cancelled.
func NewReloader(recorder *audit.Recorder, path string, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := watcher.Add(path); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to watch %q: %w", path, err)
			}
		}
	}

	return &Reloader{
		watcher:  watcher,
		recorder: recorder,
		path:     path,
		logger:   logger,
	}, nil
}

// Run watches for file changes and reloads the policy. Blocks until ctx is
// cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after last write before reloading
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (r *Reloader) reload() {
	policy, err := audit.LoadPolicy(r.path)
	if err != nil {
		r.logger.Warn("policy hot-reload failed", "path", r.path, "error", err)
		return
	}
	r.recorder.SetPolicy(policy)
	r.logger.Info("audit policy reloaded", "path", r.path)
}
