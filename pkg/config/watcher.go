package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called when the configuration file changes.
type ChangeHandler func(*Config) error

// Watcher monitors the configuration file and re-decodes it on change.
// Only settings that are safe to change at runtime are acted upon by
// handlers; everything else requires a restart.
type Watcher struct {
	loader   *Loader
	config   *Config
	handlers []ChangeHandler
	onError  func(error)
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(loader *Loader, config *Config) *Watcher {
	return &Watcher{
		loader:  loader,
		config:  config,
		onError: func(error) {},
	}
}

// AddHandler registers a handler to be called when configuration changes.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// OnError sets the callback for reload and handler failures.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start begins watching the configuration file. It is a no-op when no
// file was loaded.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	if w.loader.GetConfigPath() == "" {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		w.Reload()
	})
	w.loader.viper.WatchConfig()
	return nil
}

// Reload decodes the current file contents and notifies handlers.
func (w *Watcher) Reload() {
	newConfig, err := w.loader.decode()
	if err == nil {
		err = ValidateConfig(newConfig)
	}
	if err != nil {
		w.reportError(fmt.Errorf("reloading config: %w", err))
		return
	}

	w.mu.Lock()
	w.config = newConfig
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(newConfig); err != nil {
			w.reportError(fmt.Errorf("config change handler: %w", err))
		}
	}
}

// Stop stops acting on configuration changes. Viper offers no way to
// remove its fsnotify watch, so later events are ignored instead.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	w.watching = false
	w.loader.viper.OnConfigChange(func(fsnotify.Event) {})
}

// GetConfig returns the most recently loaded configuration.
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) reportError(err error) {
	w.mu.RLock()
	fn := w.onError
	w.mu.RUnlock()
	fn(err)
}
