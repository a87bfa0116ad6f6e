package appearance

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces editor save bursts into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a Source when its file changes and calls OnChange with the
// new appearance.
type Watcher struct {
	source   *Source
	onChange func(Appearance)
	debounce time.Duration
	logger   *zap.Logger

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for source. The file's directory is watched
// so editors that replace the file by rename are still seen.
func NewWatcher(source *Source, debounce time.Duration, onChange func(Appearance), logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		source:   source,
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.source.Path())
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	go w.eventLoop()

	w.logger.Info("Appearance watcher started", zap.String("path", w.source.Path()))
	return nil
}

// Stop stops watching and cancels any pending reload.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	target := filepath.Clean(w.source.Path())
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Appearance watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	changed, err := w.source.Reload()
	if err != nil {
		w.logger.Warn("Failed to reload appearance", zap.Error(err))
		return
	}
	if !changed {
		return
	}
	w.logger.Info("Appearance changed", zap.String("theme", w.source.Current().ColorTheme))
	if w.onChange != nil {
		w.onChange(w.source.Current())
	}
}
