package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher calls a function after the settings file changes on disk. Bursts
// of events, such as the write and rename of an atomic save, collapse into
// one call.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()
	done     chan struct{}
}

// NewWatcher creates a watcher for path. The parent directory is what gets
// watched, because atomic saves replace the file.
func NewWatcher(logger *zap.Logger, path string, onChange func()) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		logger:   logger,
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		onChange: onChange,
	}, nil
}

// SetDebounce changes the quiet period. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. The goroutine exits when ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("Watching settings file", zap.String("path", w.path))

	timer := time.NewTimer(0)
	<-timer.C

	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		defer timer.Stop()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if w.relevant(event) {
					w.logger.Debug("Settings file event",
						zap.String("file", event.Name),
						zap.String("op", event.Op.String()))
					timer.Reset(w.debounce)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("Settings watcher error", zap.Error(err))

			case <-timer.C:
				w.onChange()

			case <-ctx.Done():
				w.logger.Info("Stopping settings watcher")
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher and waits for its goroutine if it was started.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if w.done != nil {
		<-w.done
	}
	return err
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
