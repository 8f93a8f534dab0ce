package fsutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period Watch waits for before firing.
const DefaultDebounce = 100 * time.Millisecond

// Watch invokes onChange after path changes, until ctx is canceled.
// When path is a file its parent directory is watched and only events for
// that file count, so editors that replace files atomically are handled.
// Bursts of events within debounce collapse into one call.
func Watch(ctx context.Context, path string, debounce time.Duration, logger zerolog.Logger, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := Resolve(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", abs, err)
	}
	dir, only := abs, ""
	if !fi.IsDir() {
		dir, only = filepath.Dir(abs), abs
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info().Str("path", abs).Dur("debounce", debounce).Msg("file watcher started")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("path", abs).Msg("file watcher stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if only != "" && filepath.Clean(ev.Name) != only {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("file event")
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error().Err(err).Msg("file watcher error")
		}
	}
}
