// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"path/filepath"
	"testing"

	"olladesk/internal/config"
	"olladesk/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// CHAT PERSISTENCE TESTS
// =============================================================================

func TestPutAndGetAll(t *testing.T) {
	store := openTestStore(t)

	chat := model.NewChat("llama3").AppendMessages(
		model.NewUserMessage("hello"),
		model.NewAssistantMessage().WithContent("hi there"),
	)
	if err := store.Put(chat); err != nil {
		t.Fatalf("put: %v", err)
	}

	chats, err := store.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}
	got := chats[0]
	if got.ID != chat.ID || got.Model != "llama3" {
		t.Errorf("chat identity lost: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hi there" {
		t.Errorf("messages lost: %+v", got.Messages)
	}
	if !got.UpdatedAt.Equal(chat.UpdatedAt) {
		t.Error("timestamps should survive the round trip")
	}
}

func TestPutUpserts(t *testing.T) {
	store := openTestStore(t)

	chat := model.NewChat("llama3")
	if err := store.Put(chat); err != nil {
		t.Fatalf("put: %v", err)
	}

	renamed := chat.WithTitle("Budget Planning")
	if err := store.Put(renamed); err != nil {
		t.Fatalf("put: %v", err)
	}

	chats, err := store.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("upsert should not duplicate, got %d records", len(chats))
	}
	if chats[0].Title != "Budget Planning" {
		t.Errorf("expected renamed title, got %q", chats[0].Title)
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)

	chat := model.NewChat("llama3")
	if err := store.Put(chat); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(chat.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	chats, _ := store.GetAll()
	if len(chats) != 0 {
		t.Errorf("expected empty store, got %d records", len(chats))
	}

	// Deleting a missing id is not an error.
	if err := store.Delete("no-such-id"); err != nil {
		t.Errorf("deleting missing id: %v", err)
	}
}

func TestClearAllKeepsSettings(t *testing.T) {
	store := openTestStore(t)

	if err := store.Put(model.NewChat("llama3")); err != nil {
		t.Fatalf("put: %v", err)
	}
	settings := config.DefaultSettings()
	settings.DefaultModel = "mistral"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("clear all: %v", err)
	}

	chats, _ := store.GetAll()
	if len(chats) != 0 {
		t.Errorf("expected no chats after clear, got %d", len(chats))
	}
	got, err := store.LoadSettings()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if got.DefaultModel != "mistral" {
		t.Error("clearing chats must not touch settings")
	}
}

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestLoadSettingsDefaults(t *testing.T) {
	store := openTestStore(t)

	settings, err := store.LoadSettings()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings != config.DefaultSettings() {
		t.Errorf("expected defaults before first save, got %+v", settings)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	settings := config.DefaultSettings()
	settings.AutoTitle = false
	settings.Temperature = 0.2
	settings.SystemPrompt = "be brief"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	got, err := store.LoadSettings()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if got != settings {
		t.Errorf("settings round trip mismatch: %+v", got)
	}
}

// =============================================================================
// REOPEN TESTS
// =============================================================================

func TestReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	chat := model.NewChat("llama3").AppendMessages(model.NewUserMessage("persist me"))
	if err := store.Put(chat); err != nil {
		t.Fatalf("put: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	chats, err := reopened.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chats) != 1 || chats[0].Messages[0].Content != "persist me" {
		t.Error("data must survive a close and reopen")
	}
}
