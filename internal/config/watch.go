package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceInterval collapses editor write bursts into one reload.
const debounceInterval = 200 * time.Millisecond

// Watch re-reads path whenever it changes and hands the parsed result to
// apply. Intended for the dynamic subset of settings (log level, verbose);
// structural settings still require a restart. Blocks until ctx is done.
//
// The parent directory is watched rather than the file itself: editors and
// config management tools typically replace the file, which would silently
// detach a file-level watch.
func Watch(ctx context.Context, path string, log zerolog.Logger, apply func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	log.Debug().Str("path", target).Msg("config watch started")

	debounce := time.NewTimer(debounceInterval)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(debounceInterval)
		case <-debounce.C:
			cfg, err := Load(target)
			if err != nil {
				log.Warn().Err(err).Str("path", target).Msg("config reload failed")
				continue
			}
			log.Info().Str("path", target).Msg("config reloaded")
			apply(cfg.WithDefaults())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
