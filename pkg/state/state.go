package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"guildwarden/pkg/fileutil"
	"guildwarden/pkg/logger"
)

// FileStore keeps all values in memory and persists them as one JSON
// object, written atomically through a temp file and rename.
type FileStore struct {
	log      *logger.Logger
	filePath string
	data     map[string]json.RawMessage
	mu       sync.RWMutex

	autoSave      bool
	saveInterval  time.Duration
	saveTicker    *time.Ticker
	stopSave      chan struct{}
	pendingWrites bool
	closeOnce     sync.Once
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	FilePath     string
	AutoSave     bool          // Save on a timer instead of on every write
	SaveInterval time.Duration // Auto-save interval (default: 5s)
}

// NewFileStore creates a file-backed store, loading any existing file.
func NewFileStore(log *logger.Logger, cfg *FileStoreConfig) (*FileStore, error) {
	if cfg.SaveInterval == 0 {
		cfg.SaveInterval = 5 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	s := &FileStore{
		log:          log,
		filePath:     cfg.FilePath,
		data:         make(map[string]json.RawMessage),
		autoSave:     cfg.AutoSave,
		saveInterval: cfg.SaveInterval,
		stopSave:     make(chan struct{}),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	if s.autoSave {
		s.startAutoSave()
	}
	return s, nil
}

// Get retrieves a value from the store.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set stores a value.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("state value for %s is not valid JSON", key)
	}
	s.mu.Lock()
	s.data[key] = append(json.RawMessage(nil), value...)
	s.pendingWrites = true
	s.mu.Unlock()

	return s.saveIfSync()
}

// Delete removes a value.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.pendingWrites = true
	s.mu.Unlock()

	return s.saveIfSync()
}

// Keys returns the keys starting with prefix, sorted.
func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Update atomically updates a value under the store lock.
func (s *FileStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	current, exists := s.data[key]
	next, err := fn(append([]byte(nil), current...), exists)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrAbortUpdate) {
			return nil
		}
		return err
	}
	if !json.Valid(next) {
		s.mu.Unlock()
		return fmt.Errorf("state value for %s is not valid JSON", key)
	}
	s.data[key] = append(json.RawMessage(nil), next...)
	s.pendingWrites = true
	s.mu.Unlock()

	return s.saveIfSync()
}

func (s *FileStore) saveIfSync() error {
	if s.autoSave {
		return nil
	}
	return s.Save()
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.data); err != nil {
		return fmt.Errorf("unmarshaling state: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string]json.RawMessage)
	}

	s.log.Info("Loaded state", zap.String("file", s.filePath), zap.Int("keys", len(s.data)))
	return nil
}

// Save persists pending writes to disk.
func (s *FileStore) Save() error {
	// The write lock is held across the file write so concurrent saves
	// cannot rename an older snapshot over a newer one.
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pendingWrites {
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	if err := fileutil.WriteAtomic(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	s.pendingWrites = false

	s.log.Debug("Saved state", zap.String("file", s.filePath), zap.Int("keys", len(s.data)))
	return nil
}

func (s *FileStore) startAutoSave() {
	s.saveTicker = time.NewTicker(s.saveInterval)

	go func() {
		for {
			select {
			case <-s.saveTicker.C:
				if err := s.Save(); err != nil {
					s.log.Error("Auto-save failed", zap.Error(err))
				}
			case <-s.stopSave:
				return
			}
		}
	}()

	s.log.Info("Started auto-save", zap.Duration("interval", s.saveInterval))
}

// Close stops auto-save and performs a final save.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		if s.saveTicker != nil {
			s.saveTicker.Stop()
			close(s.stopSave)
		}
	})
	return s.Save()
}
