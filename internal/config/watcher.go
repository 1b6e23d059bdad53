package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler is called with the freshly loaded config after a change.
type ChangeHandler func(cfg *Config)

// Watcher hot-reloads the config file and fans changes out to handlers.
// Validation failures keep the previous config; a broken edit never takes
// a running service down.
type Watcher struct {
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	debounce time.Duration

	mu       sync.RWMutex
	current  *Config
	handlers []ChangeHandler
	started  bool
}

// NewWatcher loads the config once and prepares the file watcher.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		logger:   logger,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		debounce: 500 * time.Millisecond,
		current:  cfg,
	}, nil
}

// Current returns the active configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a handler invoked after every successful reload.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching. Watching the directory instead of the file
// survives the rename-and-replace writes editors and configmap mounts do.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.loop(ctx)
	w.logger.Info("Config watcher started", zap.String("path", w.path))
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Error("Config reload failed, keeping previous config", zap.Error(err))
			return
		}

		w.mu.Lock()
		w.current = cfg
		handlers := append([]ChangeHandler(nil), w.handlers...)
		w.mu.Unlock()

		w.logger.Info("Config reloaded", zap.String("path", w.path))
		for _, h := range handlers {
			h(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of events from a single save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}
