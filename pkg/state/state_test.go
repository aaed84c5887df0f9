package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"guildwarden/pkg/logger"
)

func newFileStore(t *testing.T, path string, autoSave bool) *FileStore {
	t.Helper()
	store, err := NewFileStore(logger.NewNop(), &FileStoreConfig{
		FilePath:     path,
		AutoSave:     autoSave,
		SaveInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestFileStorePersists(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state", "guilds.json")
	ctx := context.Background()

	store := newFileStore(t, statePath, false)
	if err := store.Set(ctx, "guild:1", []byte(`{"log_channel_id":"10"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "guild:2", []byte(`{"log_channel_id":"20"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "other", []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "guild:2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(statePath + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}

	reopened := newFileStore(t, statePath, false)
	defer reopened.Close()

	value, exists, err := reopened.Get(ctx, "guild:1")
	if err != nil || !exists {
		t.Fatalf("guild:1 missing after reopen: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(value, &decoded); err != nil || decoded["log_channel_id"] != "10" {
		t.Fatalf("unexpected value %s", value)
	}
	if _, exists, _ := reopened.Get(ctx, "guild:2"); exists {
		t.Fatalf("deleted key came back")
	}

	keys, err := reopened.Keys(ctx, "guild:")
	if err != nil || len(keys) != 1 || keys[0] != "guild:1" {
		t.Fatalf("unexpected keys %v (%v)", keys, err)
	}
}

func TestFileStoreRejectsInvalidJSON(t *testing.T) {
	store := newFileStore(t, filepath.Join(t.TempDir(), "s.json"), false)
	defer store.Close()

	if err := store.Set(context.Background(), "k", []byte("{nope")); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestFileStoreUpdateIsAtomic(t *testing.T) {
	store := newFileStore(t, filepath.Join(t.TempDir(), "s.json"), true)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, "counter", func(current []byte, exists bool) ([]byte, error) {
				n := 0
				if exists {
					if err := json.Unmarshal(current, &n); err != nil {
						return nil, err
					}
				}
				return []byte(fmt.Sprint(n + 1)), nil
			})
			if err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}()
	}
	wg.Wait()

	value, _, _ := store.Get(ctx, "counter")
	if string(value) != "50" {
		t.Fatalf("expected 50, got %s", value)
	}
}

func TestFileStoreUpdateAbort(t *testing.T) {
	store := newFileStore(t, filepath.Join(t.TempDir(), "s.json"), false)
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte(`"keep"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	err := store.Update(ctx, "k", func([]byte, bool) ([]byte, error) {
		return nil, ErrAbortUpdate
	})
	if err != nil {
		t.Fatalf("abort should not surface as error: %v", err)
	}
	value, _, _ := store.Get(ctx, "k")
	if string(value) != `"keep"` {
		t.Fatalf("value changed on abort: %s", value)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("GUILDWARDEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GUILDWARDEN_TEST_REDIS_ADDR not set")
	}
	prefix := fmt.Sprintf("guildwarden-test-%d:", time.Now().UnixNano())
	store, err := NewRedisStore(logger.NewNop(), &RedisStoreConfig{Addr: addr, Prefix: prefix})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Set(ctx, "guild:1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	err = store.Update(ctx, "guild:1", func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			t.Errorf("expected existing value")
		}
		return []byte(`{"a":2}`), nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	value, exists, err := store.Get(ctx, "guild:1")
	if err != nil || !exists || string(value) != `{"a":2}` {
		t.Fatalf("unexpected value %s %v %v", value, exists, err)
	}
	keys, err := store.Keys(ctx, "guild:")
	if err != nil || len(keys) != 1 || keys[0] != "guild:1" {
		t.Fatalf("unexpected keys %v %v", keys, err)
	}
	if err := store.Delete(ctx, "guild:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}
