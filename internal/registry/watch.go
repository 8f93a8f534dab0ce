package registry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"llmgate/internal/common/fsutil"
	"llmgate/pkg/types"
)

// Watcher reports manifests that appear in a directory after startup.
type Watcher struct {
	dir    string
	logger zerolog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewWatcher returns a Watcher that treats the names in known as already
// handled.
func NewWatcher(dir string, known []types.ModelSpec, logger zerolog.Logger) *Watcher {
	w := &Watcher{dir: dir, logger: logger, seen: make(map[string]bool, len(known))}
	for _, s := range known {
		w.seen[s.Name] = true
	}
	return w
}

// Run rescans the directory on every change and calls onAdd for each model
// name not yet handled, until ctx is done. A name counts as handled once
// onAdd returns nil; a failed one is offered again on the next change.
// Removing a manifest does not unload its model.
func (w *Watcher) Run(ctx context.Context, onAdd func(types.ModelSpec) error) error {
	return fsutil.Watch(ctx, w.dir, fsutil.DefaultDebounce, w.logger, func() {
		for _, s := range w.Rescan() {
			if err := onAdd(s); err != nil {
				w.logger.Debug().Err(err).Str("model", s.Name).Msg("manifest will be retried on the next change")
				continue
			}
			w.MarkSeen(s.Name)
		}
	})
}

// MarkSeen records name as handled so Rescan no longer reports it.
func (w *Watcher) MarkSeen(name string) {
	w.mu.Lock()
	w.seen[name] = true
	w.mu.Unlock()
}

// Rescan loads the directory and returns the specs not yet handled.
func (w *Watcher) Rescan() []types.ModelSpec {
	specs, err := LoadDir(w.dir)
	if err != nil {
		w.logger.Warn().Err(err).Str("dir", w.dir).Msg("model manifest scan reported errors")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var fresh []types.ModelSpec
	for _, s := range specs {
		if w.seen[s.Name] {
			continue
		}
		fresh = append(fresh, s)
	}
	return fresh
}
