// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package storage provides durable persistence for chats and settings on
// a local bbolt database.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"olladesk/internal/config"
	"olladesk/internal/model"
)

const (
	chatsBucket    = "chats"
	settingsBucket = "settings"
	settingsKey    = "settings"
)

// ErrUnavailable is wrapped by every storage failure. Loss of durability
// is preferable to crashing an interactive session, so callers should
// log and continue operating in memory.
var ErrUnavailable = errors.New("storage unavailable")

// =============================================================================
// STORE
// =============================================================================

// Store persists chat records keyed by id, plus the single settings
// record, in one local database file.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures the buckets
// exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", ErrUnavailable, err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(chatsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(settingsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create buckets: %v", ErrUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// GetAll returns every stored chat. No ordering is implied; the caller
// sorts. Records that fail to decode are skipped rather than failing the
// whole load.
func (s *Store) GetAll() ([]model.Chat, error) {
	var chats []model.Chat
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(chatsBucket)).ForEach(func(k, v []byte) error {
			var chat model.Chat
			if err := json.Unmarshal(v, &chat); err != nil {
				return nil // skip corrupted record
			}
			chats = append(chats, chat)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load chats: %v", ErrUnavailable, err)
	}
	return chats, nil
}

// Put upserts a chat record keyed by its id.
func (s *Store) Put(chat model.Chat) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("%w: encode chat: %v", ErrUnavailable, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(chatsBucket)).Put([]byte(chat.ID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: save chat: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes a chat record by id. Deleting a missing id is not an
// error.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(chatsBucket)).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete chat: %v", ErrUnavailable, err)
	}
	return nil
}

// ClearAll removes every chat record, leaving settings intact.
func (s *Store) ClearAll() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(chatsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(chatsBucket))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: clear chats: %v", ErrUnavailable, err)
	}
	return nil
}

// =============================================================================
// SETTINGS OPERATIONS
// =============================================================================

// LoadSettings returns the persisted settings record, or defaults if
// none has been saved yet.
func (s *Store) LoadSettings() (config.Settings, error) {
	settings := config.DefaultSettings()
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(settingsBucket)).Get([]byte(settingsKey))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &settings)
	})
	if err != nil {
		return config.DefaultSettings(), fmt.Errorf("%w: load settings: %v", ErrUnavailable, err)
	}
	return settings, nil
}

// SaveSettings persists the settings record.
func (s *Store) SaveSettings(settings config.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%w: encode settings: %v", ErrUnavailable, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(settingsKey), data)
	})
	if err != nil {
		return fmt.Errorf("%w: save settings: %v", ErrUnavailable, err)
	}
	return nil
}
