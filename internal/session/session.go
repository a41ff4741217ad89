// Package session implements the per-chat conversation state machine
// that drives the menu wizard: category → source → view → count →
// page delivery.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"red_bot/internal/config"
	"red_bot/internal/listing"
	"red_bot/internal/model"
	"red_bot/internal/prefs"
)

// State identifies what the conversation is waiting for next.
type State int

// Conversation states. Start is transient: entering it immediately
// presents the category menu and moves on to SelectSource.
const (
	StateBouncer State = iota
	StateStart
	StateSelectSource
	StateSelectView
	StateSelectCount
	StateIssue
	StateNextPage
	StateAcceptUpload
)

// Session holds one chat's conversation context. Events for the same
// chat are processed strictly in sequence under mu; distinct chats run
// in parallel.
type Session struct {
	ChatID  int64
	State   State
	Request model.Request
	// LastMenuID is the message ID of the most recent inline keyboard,
	// 0 when there is none.
	LastMenuID int

	mu sync.Mutex
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Upload describes a document attached to an inbound message.
type Upload struct {
	FileID string
	Name   string
	Size   int
}

// UI is the interface the state machine needs from the chat platform.
type UI interface {
	SendText(chatID int64, text string) error
	// SendMenu sends a text message with an inline keyboard and returns
	// the sent message's ID.
	SendMenu(chatID int64, text string, rows [][]Button) (int, error)
	// RemoveButtons strips the inline keyboard from a previous menu.
	RemoveButtons(chatID int64, messageID int) error
	SendJSONDocument(chatID int64, name string, data []byte) error
	// FetchDocument downloads an uploaded document, up to maxBytes.
	FetchDocument(ctx context.Context, fileID string, maxBytes int) ([]byte, error)
}

// Deliverer sends a page of entries into a chat.
type Deliverer interface {
	DeliverPage(ctx context.Context, chatID int64, entries []model.Entry) error
}

// Manager owns all active sessions and routes inbound events to the
// handler for the session's current state.
type Manager struct {
	ui        UI
	listing   listing.Service
	deliverer Deliverer
	store     prefs.Store
	cfg       *config.Config
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager creates a Manager.
func NewManager(ui UI, svc listing.Service, deliverer Deliverer, store prefs.Store, cfg *config.Config, log *slog.Logger) *Manager {
	return &Manager{
		ui:        ui,
		listing:   svc,
		deliverer: deliverer,
		store:     store,
		cfg:       cfg,
		log:       log,
		sessions:  make(map[int64]*Session),
	}
}

// session returns the chat's session, creating it in Bouncer state.
func (m *Manager) session(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = &Session{ChatID: chatID, State: StateBouncer}
		m.sessions[chatID] = s
	}
	return s
}

// catSources returns the chat's customized mapping, or the configured
// default when the chat has none.
func (m *Manager) catSources(ctx context.Context, chatID int64) model.CatSources {
	stored, err := m.store.Get(ctx, chatID)
	if err != nil {
		m.log.Error("load preferences", "chat_id", chatID, "error", err)
		return m.cfg.Sources
	}
	if stored == nil {
		return m.cfg.Sources
	}
	return stored
}

func (m *Manager) categories(ctx context.Context, chatID int64) []string {
	sources := m.catSources(ctx, chatID)
	cats := make([]string, 0, len(sources))
	for cat := range sources {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

func (m *Manager) sourcesIn(ctx context.Context, chatID int64, category string) []string {
	if subs, ok := m.catSources(ctx, chatID)[category]; ok && len(subs) > 0 {
		return subs
	}
	return []string{"all"}
}

// chunkButtons lays labels out as callback buttons, perRow per keyboard
// row. Label and callback data are the same string.
func chunkButtons(labels []string, perRow int) [][]Button {
	var rows [][]Button
	for start := 0; start < len(labels); start += perRow {
		end := start + perRow
		if end > len(labels) {
			end = len(labels)
		}
		row := make([]Button, 0, end-start)
		for _, l := range labels[start:end] {
			row = append(row, Button{Label: l, Data: l})
		}
		rows = append(rows, row)
	}
	return rows
}
