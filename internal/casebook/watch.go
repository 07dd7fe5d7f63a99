package casebook

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads path into book whenever the file changes, until ctx is done.
// A catalog that fails to parse is logged and the previous one stays in place.
// The parent directory is watched so editors that replace the file are seen.
func Watch(ctx context.Context, book *Book, path string, logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("watching case catalog", zap.String("path", abs))

	var pending <-chan time.Time
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
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)

		case <-pending:
			pending = nil
			c, err := LoadFile(abs)
			if err != nil {
				logger.Warn("case catalog reload failed", zap.Error(err))
				continue
			}
			book.Swap(c)
			logger.Info("case catalog reloaded", zap.Int("cases", len(c.Cases)))

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("case catalog watcher error", zap.Error(err))
		}
	}
}
