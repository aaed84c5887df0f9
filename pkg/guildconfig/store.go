// Package guildconfig stores per-guild bot settings. Writes to one guild
// are serialised; different guilds proceed independently.
package guildconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guildwarden/pkg/state"
)

// ErrNoGuild is returned for an empty guild id.
var ErrNoGuild = errors.New("guild id is required")

// Settings is the persisted configuration of one guild.
type Settings struct {
	GuildID        string    `json:"guild_id"`
	LogChannelID   string    `json:"log_channel_id,omitempty"`
	AutoModRuleIDs []string  `json:"automod_rule_ids,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
}

// Store reads and writes guild settings.
type Store interface {
	// Get returns the settings for guildID, or zero settings if none were saved.
	Get(ctx context.Context, guildID string) (Settings, error)
	// Update applies fn to the current settings and saves the result.
	// Concurrent updates to the same guild run one at a time.
	Update(ctx context.Context, guildID string, fn func(*Settings) error) (Settings, error)
}

// KVStore implements Store on a state.KV.
type KVStore struct {
	kv    state.KV
	locks *keyedMutex
	now   func() time.Time
}

// NewKVStore creates a store over kv.
func NewKVStore(kv state.KV) *KVStore {
	return &KVStore{kv: kv, locks: newKeyedMutex(), now: time.Now}
}

func key(guildID string) string {
	return "guild:" + guildID
}

// Get returns the settings for guildID.
func (s *KVStore) Get(ctx context.Context, guildID string) (Settings, error) {
	if guildID == "" {
		return Settings{}, ErrNoGuild
	}
	raw, exists, err := s.kv.Get(ctx, key(guildID))
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings for guild %s: %w", guildID, err)
	}
	settings := Settings{GuildID: guildID}
	if !exists {
		return settings, nil
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("decoding settings for guild %s: %w", guildID, err)
	}
	settings.GuildID = guildID
	return settings, nil
}

// errConflict means another writer changed the value between read and write.
var errConflict = errors.New("settings changed concurrently")

const maxUpdateAttempts = 5

// Update applies fn under the guild's lock. fn runs outside the storage
// lock and may run again if another process wrote the same guild in the
// meantime. If fn fails nothing is written.
func (s *KVStore) Update(ctx context.Context, guildID string, fn func(*Settings) error) (Settings, error) {
	if guildID == "" {
		return Settings{}, ErrNoGuild
	}
	unlock := s.locks.Lock(guildID)
	defer unlock()

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		raw, exists, err := s.kv.Get(ctx, key(guildID))
		if err != nil {
			return Settings{}, fmt.Errorf("loading settings for guild %s: %w", guildID, err)
		}
		settings := Settings{GuildID: guildID}
		if exists {
			if err := json.Unmarshal(raw, &settings); err != nil {
				return Settings{}, fmt.Errorf("decoding settings for guild %s: %w", guildID, err)
			}
		}
		if err := fn(&settings); err != nil {
			return Settings{}, fmt.Errorf("updating settings for guild %s: %w", guildID, err)
		}
		settings.GuildID = guildID
		settings.UpdatedAt = s.now().UTC()
		next, err := json.Marshal(settings)
		if err != nil {
			return Settings{}, err
		}

		err = s.kv.Update(ctx, key(guildID), func(current []byte, currentExists bool) ([]byte, error) {
			if currentExists != exists || !bytes.Equal(current, raw) {
				return nil, errConflict
			}
			return next, nil
		})
		if errors.Is(err, errConflict) {
			continue
		}
		if err != nil {
			return Settings{}, fmt.Errorf("saving settings for guild %s: %w", guildID, err)
		}
		return settings, nil
	}
	return Settings{}, fmt.Errorf("saving settings for guild %s: %w", guildID, errConflict)
}

var _ Store = (*KVStore)(nil)
