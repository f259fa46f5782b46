// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package session implements the chat session engine: it owns the
// in-memory conversation set, the model roster, and the single active
// generation, and mediates every mutation and every persistence write.
//
// State is published as immutable snapshots. Every mutation builds a new
// snapshot and notifies subscribers; chats and messages are replaced
// wholesale rather than mutated in place, so observers may compare
// values by identity to detect change.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"olladesk/internal/config"
	"olladesk/internal/model"
	"olladesk/internal/ollama"
	"olladesk/internal/search"
)

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned when the trimmed message text is empty.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNoActiveChat is returned when no chat is active.
	ErrNoActiveChat = errors.New("no active chat")

	// ErrGenerationActive is returned when a generation is already in
	// flight. Concurrent sends are rejected, not queued.
	ErrGenerationActive = errors.New("a generation is already in flight")

	// ErrNotRegenerable is returned when the active chat does not end
	// with an assistant response preceded by a user message.
	ErrNotRegenerable = errors.New("nothing to regenerate")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Store is the durable persistence surface the engine writes through.
// Failures are treated as non-fatal: the engine logs them and keeps
// operating in memory.
type Store interface {
	GetAll() ([]model.Chat, error)
	Put(chat model.Chat) error
	Delete(id string) error
	ClearAll() error
	LoadSettings() (config.Settings, error)
	SaveSettings(settings config.Settings) error
}

// TokenStream is a finite pull iterator over generated text increments.
type TokenStream interface {
	Next() (string, error)
	Close() error
}

// InferenceClient is the protocol surface against the backend.
type InferenceClient interface {
	ListModels(ctx context.Context) ([]model.ModelInfo, error)
	CheckReachable(ctx context.Context) bool
	StreamGenerate(ctx context.Context, modelName string, history []ollama.ChatMessage, opts *ollama.Options) (TokenStream, error)
}

// clientAdapter narrows *ollama.Client to the InferenceClient interface.
type clientAdapter struct {
	c *ollama.Client
}

// WrapClient adapts the concrete Ollama client for engine use.
func WrapClient(c *ollama.Client) InferenceClient {
	return clientAdapter{c: c}
}

func (a clientAdapter) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return a.c.ListModels(ctx)
}

func (a clientAdapter) CheckReachable(ctx context.Context) bool {
	return a.c.CheckReachable(ctx)
}

func (a clientAdapter) StreamGenerate(ctx context.Context, modelName string, history []ollama.ChatMessage, opts *ollama.Options) (TokenStream, error) {
	s, err := a.c.StreamGenerate(ctx, modelName, history, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of engine state. It is plain data:
// subscribers and tests may hold, diff, and compare snapshots freely.
type Snapshot struct {
	Chats         []model.Chat
	ActiveChatID  string
	Models        []model.ModelInfo
	SelectedModel string
	Connected     bool
	Streaming     bool
	Settings      config.Settings
	SearchQuery   string
	SearchResults []search.Result
}

// ActiveChat returns the active chat and true, or false if none.
func (s Snapshot) ActiveChat() (model.Chat, bool) {
	for _, c := range s.Chats {
		if c.ID == s.ActiveChatID {
			return c, true
		}
	}
	return model.Chat{}, false
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the chat session engine. All mutation is serialized behind
// one mutex; snapshots are published to subscribers outside it.
type Engine struct {
	mu     sync.Mutex
	store  Store
	client InferenceClient
	log    *slog.Logger

	settings      config.Settings
	chats         []model.Chat // most recent first on load
	activeChatID  string
	models        []model.ModelInfo
	selectedModel string
	connected     bool
	streaming     bool
	cancel        context.CancelFunc
	searchQuery   string
	searchResults []search.Result

	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New creates an engine over the given collaborators. Settings are
// loaded from the store; a load failure falls back to defaults.
func New(store Store, client InferenceClient, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	settings, err := store.LoadSettings()
	if err != nil {
		log.Warn("settings unavailable, using defaults", "error", err)
		settings = config.DefaultSettings()
	}
	return &Engine{
		store:       store,
		client:      client,
		log:         log,
		settings:    settings,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to receive every new snapshot. It returns a
// token for Unsubscribe. fn is invoked outside the engine lock.
func (e *Engine) Subscribe(fn func(Snapshot)) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	return id
}

// Unsubscribe removes a subscriber registered with Subscribe.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subscribers, id)
}

// Snapshot returns the current state as plain data.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	chats := make([]model.Chat, len(e.chats))
	copy(chats, e.chats)
	models := make([]model.ModelInfo, len(e.models))
	copy(models, e.models)
	results := make([]search.Result, len(e.searchResults))
	copy(results, e.searchResults)
	return Snapshot{
		Chats:         chats,
		ActiveChatID:  e.activeChatID,
		Models:        models,
		SelectedModel: e.selectedModel,
		Connected:     e.connected,
		Streaming:     e.streaming,
		Settings:      e.settings,
		SearchQuery:   e.searchQuery,
		SearchResults: results,
	}
}

// publishLocked captures the snapshot and subscriber list, releases the
// lock, and notifies. Callers must hold the lock and must not touch
// engine state afterwards.
func (e *Engine) publishLocked() {
	snap := e.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadChats reads all records from the store, sorts by UpdatedAt
// descending, and installs them. If no chat is active, the most recent
// becomes active. Storage failure leaves memory untouched.
func (e *Engine) LoadChats() error {
	chats, err := e.store.GetAll()
	if err != nil {
		e.log.Warn("failed to load chats", "error", err)
		return err
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})

	e.mu.Lock()
	e.chats = chats
	if e.activeChatID == "" && len(chats) > 0 {
		e.activeChatID = chats[0].ID
	}
	e.publishLocked()
	return nil
}

// LoadModels queries the roster. Success sets the connectivity flag and
// selects a default model; failure clears the roster and the flag.
// Errors are absorbed, never returned.
func (e *Engine) LoadModels(ctx context.Context) {
	models, err := e.client.ListModels(ctx)

	e.mu.Lock()
	if err != nil {
		e.log.Warn("failed to load models", "error", err)
		e.models = nil
		e.connected = false
		e.publishLocked()
		return
	}
	e.models = models
	e.connected = true
	e.selectedModel = pickModel(models, e.selectedModel, e.settings.DefaultModel)
	e.publishLocked()
}

// pickModel keeps the current selection when still available, then
// prefers the configured default, then the first roster entry.
func pickModel(models []model.ModelInfo, current, preferred string) string {
	has := func(name string) bool {
		for _, m := range models {
			if m.Name == name {
				return true
			}
		}
		return false
	}
	if current != "" && has(current) {
		return current
	}
	if preferred != "" && has(preferred) {
		return preferred
	}
	if len(models) > 0 {
		return models[0].Name
	}
	return ""
}

// CheckConnection is a lightweight liveness probe. On success it
// re-runs LoadModels; on failure it lowers the connectivity flag.
func (e *Engine) CheckConnection(ctx context.Context) {
	if e.client.CheckReachable(ctx) {
		e.LoadModels(ctx)
		return
	}
	e.mu.Lock()
	e.connected = false
	e.models = nil
	e.publishLocked()
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// CreateChat synthesizes a new chat for the selected model, makes it
// active, and persists it. Persistence failure is logged, not returned.
func (e *Engine) CreateChat() model.Chat {
	e.mu.Lock()
	chat := model.NewChat(e.selectedModel)
	e.chats = append([]model.Chat{chat}, e.chats...)
	e.activeChatID = chat.ID
	e.publishLocked()

	e.persist(chat)
	return chat
}

// SetActiveChat marks the chat active. Unknown ids are a silent no-op.
func (e *Engine) SetActiveChat(id string) {
	e.mu.Lock()
	if _, ok := e.findLocked(id); !ok || e.activeChatID == id {
		e.mu.Unlock()
		return
	}
	e.activeChatID = id
	e.publishLocked()
}

// DeleteChat removes the chat from the store, then from memory. If the
// deleted chat was active, the most recent remaining chat (by
// UpdatedAt) becomes active.
func (e *Engine) DeleteChat(id string) {
	if err := e.store.Delete(id); err != nil {
		e.log.Warn("failed to delete chat", "chat", id, "error", err)
	}

	e.mu.Lock()
	remaining := make([]model.Chat, 0, len(e.chats))
	found := false
	for _, c := range e.chats {
		if c.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		e.mu.Unlock()
		return
	}
	e.chats = remaining
	if e.activeChatID == id {
		e.activeChatID = mostRecentID(remaining)
	}
	e.publishLocked()
}

func mostRecentID(chats []model.Chat) string {
	id := ""
	var latest time.Time
	for _, c := range chats {
		if id == "" || c.UpdatedAt.After(latest) {
			id = c.ID
			latest = c.UpdatedAt
		}
	}
	return id
}

// RenameChat sets a new title and persists the record.
func (e *Engine) RenameChat(id, title string) {
	e.mutateChat(id, func(c model.Chat) model.Chat {
		return c.WithTitle(title)
	})
}

// SetArchived flags or unflags a chat as archived and persists it.
// Archived chats are excluded from search.
func (e *Engine) SetArchived(id string, archived bool) {
	e.mutateChat(id, func(c model.Chat) model.Chat {
		return c.WithArchived(archived)
	})
}

// ClearMessages empties a chat's message list and persists it.
func (e *Engine) ClearMessages(id string) {
	e.mutateChat(id, func(c model.Chat) model.Chat {
		return c.WithMessages([]model.Message{})
	})
}

// DuplicateChat deep-copies a chat under a fresh id, inserts the copy at
// the head of the list, and persists it. Returns the copy.
func (e *Engine) DuplicateChat(id string) (model.Chat, bool) {
	e.mu.Lock()
	src, ok := e.findLocked(id)
	if !ok {
		e.mu.Unlock()
		return model.Chat{}, false
	}
	dup := src.Duplicate()
	e.chats = append([]model.Chat{dup}, e.chats...)
	e.publishLocked()

	e.persist(dup)
	return dup, true
}

// ClearAll empties the whole collection and clears the store.
func (e *Engine) ClearAll() {
	if err := e.store.ClearAll(); err != nil {
		e.log.Warn("failed to clear store", "error", err)
	}

	e.mu.Lock()
	e.chats = nil
	e.activeChatID = ""
	e.searchResults = nil
	e.publishLocked()
}

// mutateChat applies fn to the chat, replaces it copy-on-write, and
// persists the new value. Unknown ids are a silent no-op.
func (e *Engine) mutateChat(id string, fn func(model.Chat) model.Chat) {
	e.mu.Lock()
	chat, ok := e.findLocked(id)
	if !ok {
		e.mu.Unlock()
		return
	}
	updated := fn(chat)
	e.replaceLocked(updated)
	e.publishLocked()

	e.persist(updated)
}

// findLocked returns the chat with the given id.
func (e *Engine) findLocked(id string) (model.Chat, bool) {
	for _, c := range e.chats {
		if c.ID == id {
			return c, true
		}
	}
	return model.Chat{}, false
}

// replaceLocked swaps in a new value for the chat with the same id,
// rebuilding the slice so previously published snapshots are untouched.
func (e *Engine) replaceLocked(chat model.Chat) {
	chats := make([]model.Chat, len(e.chats))
	copy(chats, e.chats)
	for i, c := range chats {
		if c.ID == chat.ID {
			chats[i] = chat
			break
		}
	}
	e.chats = chats
}

// persist writes a chat through to the store. Failures are logged and
// absorbed: the running session keeps its in-memory state.
func (e *Engine) persist(chat model.Chat) {
	if err := e.store.Put(chat); err != nil {
		e.log.Warn("failed to persist chat", "chat", chat.ID, "error", err)
	}
}

// =============================================================================
// MODEL AND SETTINGS
// =============================================================================

// SelectModel switches the model used for subsequent generations.
func (e *Engine) SelectModel(name string) {
	e.mu.Lock()
	e.selectedModel = name
	e.publishLocked()
}

// UpdateSettings installs and persists a new settings record.
func (e *Engine) UpdateSettings(settings config.Settings) {
	e.mu.Lock()
	e.settings = settings
	e.publishLocked()

	if err := e.store.SaveSettings(settings); err != nil {
		e.log.Warn("failed to persist settings", "error", err)
	}
}

// =============================================================================
// SEARCH
// =============================================================================

// SetSearchQuery runs the search indexer over non-archived chats and
// stores the ranked results. A blank query clears the result set.
func (e *Engine) SetSearchQuery(query string) {
	e.mu.Lock()
	e.searchQuery = query
	e.searchResults = search.Chats(e.chats, query)
	e.publishLocked()
}

// =============================================================================
// GENERATION
// =============================================================================

// SendMessage runs one full generation against the active chat: it
// appends the user message and an empty assistant placeholder, persists,
// streams increments into the assistant message, and persists again on
// the terminal transition. It blocks until the generation reaches a
// terminal state; callers drive it from their own goroutine.
//
// Guard violations (empty text, no active chat, generation in flight)
// are returned; generation failures are absorbed into the assistant
// message and produce a nil return.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	chat, ok := e.findLocked(e.activeChatID)
	if !ok {
		e.mu.Unlock()
		return ErrNoActiveChat
	}
	if e.streaming {
		e.mu.Unlock()
		return ErrGenerationActive
	}

	firstMessage := chat.IsEmpty()
	chat = chat.AppendMessages(model.NewUserMessage(trimmed), model.NewAssistantMessage())
	chat.Model = e.selectedModel
	if firstMessage && e.settings.AutoTitle {
		chat.Title = model.TitleFromContent(trimmed)
	}
	e.replaceLocked(chat)

	genCtx, cancel := context.WithCancel(ctx)
	e.streaming = true
	e.cancel = cancel

	modelName := e.selectedModel
	history := buildHistory(chat, e.settings.SystemPrompt)
	opts := samplingOptions(e.settings)
	e.publishLocked()

	// Persist the appended turn before the network call so a crash
	// mid-generation cannot lose the user's message.
	e.persist(chat)

	streamErr := e.runGeneration(genCtx, chat.ID, modelName, history, opts)
	e.finishGeneration(chat.ID, cancel, streamErr)
	return nil
}

// runGeneration drives the token stream, applying each increment to the
// trailing assistant message in arrival order. It returns nil on clean
// completion, and otherwise the stream or request error.
func (e *Engine) runGeneration(ctx context.Context, chatID, modelName string, history []ollama.ChatMessage, opts *ollama.Options) error {
	stream, err := e.client.StreamGenerate(ctx, modelName, history, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		token, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		e.applyIncrement(chatID, token)
	}
}

// applyIncrement appends one increment to the trailing assistant message
// by value replacement.
func (e *Engine) applyIncrement(chatID, token string) {
	e.mu.Lock()
	chat, ok := e.findLocked(chatID)
	if !ok {
		e.mu.Unlock()
		return
	}
	last, ok := chat.LastMessage()
	if !ok || last.Role != model.RoleAssistant {
		e.mu.Unlock()
		return
	}
	chat = chat.ReplaceLastMessage(last.WithContent(last.Content + token))
	e.replaceLocked(chat)
	e.publishLocked()
}

// finishGeneration is the terminal transition. It runs on every exit
// path: it annotates a failed-and-empty assistant message, persists the
// final record, and unconditionally clears the streaming flag and the
// cancellation handle. Cancellation keeps partial content and adds no
// annotation.
func (e *Engine) finishGeneration(chatID string, cancel context.CancelFunc, streamErr error) {
	cancel()

	e.mu.Lock()
	e.streaming = false
	e.cancel = nil

	chat, ok := e.findLocked(chatID)
	if ok && streamErr != nil && !ollama.IsCancelled(streamErr) {
		e.log.Warn("generation failed", "chat", chatID, "error", streamErr)
		if last, ok := chat.LastMessage(); ok && last.Role == model.RoleAssistant && last.IsEmpty() {
			// Annotate only when nothing streamed in; a usable partial
			// answer is preserved as-is.
			chat = chat.ReplaceLastMessage(last.WithContent("Error: " + streamErr.Error()))
			e.replaceLocked(chat)
		}
	}
	if ok {
		chat, _ = e.findLocked(chatID)
		chat.UpdatedAt = time.Now()
		e.replaceLocked(chat)
	}
	e.publishLocked()

	if ok {
		e.persist(chat)
	}
}

// RegenerateLastResponse removes the trailing assistant message from the
// active chat, persists the truncated record, and re-sends the
// preceding user message.
func (e *Engine) RegenerateLastResponse(ctx context.Context) error {
	e.mu.Lock()
	chat, ok := e.findLocked(e.activeChatID)
	if !ok {
		e.mu.Unlock()
		return ErrNoActiveChat
	}
	if e.streaming {
		e.mu.Unlock()
		return ErrGenerationActive
	}

	n := len(chat.Messages)
	if n < 2 || chat.Messages[n-1].Role != model.RoleAssistant || chat.Messages[n-2].Role != model.RoleUser {
		e.mu.Unlock()
		return ErrNotRegenerable
	}
	userText := chat.Messages[n-2].Content

	truncated := make([]model.Message, n-2)
	copy(truncated, chat.Messages[:n-2])
	chat = chat.WithMessages(truncated)
	e.replaceLocked(chat)
	e.publishLocked()

	e.persist(chat)
	return e.SendMessage(ctx, userText)
}

// StopStreaming signals cancellation of the active generation. It is an
// idempotent no-op when none is active.
func (e *Engine) StopStreaming() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// =============================================================================
// HISTORY AND OPTIONS
// =============================================================================

// buildHistory converts a chat into wire history: the system prompt (if
// any), user and system messages, and assistant messages that have
// content. The empty trailing placeholder is excluded.
func buildHistory(chat model.Chat, systemPrompt string) []ollama.ChatMessage {
	history := make([]ollama.ChatMessage, 0, len(chat.Messages)+1)
	if systemPrompt != "" {
		history = append(history, ollama.NewChatMessage(model.RoleSystem, systemPrompt))
	}
	for _, msg := range chat.Messages {
		if msg.Role == model.RoleAssistant && msg.IsEmpty() {
			continue
		}
		history = append(history, ollama.NewChatMessage(msg.Role, msg.Content))
	}
	return history
}

// samplingOptions maps settings onto wire options, omitting fields the
// backend should default.
func samplingOptions(settings config.Settings) *ollama.Options {
	opts := &ollama.Options{
		Temperature: ollama.Float64(settings.Temperature),
		TopP:        ollama.Float64(settings.TopP),
	}
	if settings.MaxTokens > 0 {
		opts.NumPredict = ollama.Int(settings.MaxTokens)
	}
	return opts
}
