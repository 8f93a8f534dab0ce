package safety

import (
	"context"

	"github.com/rs/zerolog"

	"llmgate/internal/common/fsutil"
)

// Reload replaces the denylist with base plus the terms in path.
func (f *Filter) Reload(base []string, path string) error {
	terms, err := LoadFile(path)
	if err != nil {
		return err
	}
	f.Update(append(append([]string(nil), base...), terms...))
	return nil
}

// WatchFile reloads the denylist whenever path changes, until ctx is done.
// A failed reload keeps the previous rule set.
func (f *Filter) WatchFile(ctx context.Context, base []string, path string, logger zerolog.Logger) error {
	return fsutil.Watch(ctx, path, fsutil.DefaultDebounce, logger, func() {
		if err := f.Reload(base, path); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("denylist reload failed")
			return
		}
		logger.Info().Str("path", path).Int("terms", len(f.Terms())).Msg("denylist reloaded")
	})
}
