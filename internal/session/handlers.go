package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"red_bot/internal/model"
)

const (
	deniedText       = "Sorry, you're not in the allow list."
	invalidStateText = "Unable to handle the message. Type /help to see the usage."
)

// HandleStart processes the entry command. Chats outside the allow list
// get a single denial and stay in Bouncer.
func (m *Manager) HandleStart(ctx context.Context, chatID int64) error {
	s := m.session(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !m.cfg.IsChatAllowed(chatID) {
		return m.ui.SendText(chatID, deniedText)
	}
	s.State = StateStart
	return m.showCategories(ctx, s)
}

// HandleCallback processes an inline button press.
func (m *Manager) HandleCallback(ctx context.Context, chatID int64, data string) error {
	s := m.session(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case StateSelectSource:
		return m.selectCategory(ctx, s, data)
	case StateSelectView:
		return m.selectSource(ctx, s, data)
	case StateSelectCount:
		return m.selectView(ctx, s, data)
	case StateIssue:
		return m.issue(ctx, s, data)
	case StateNextPage:
		return m.nextPage(ctx, s, data)
	default:
		return m.ui.SendText(chatID, invalidStateText)
	}
}

// HandleText processes a free-text message. Only SelectSource accepts
// one: a typed source name bypasses the category menu.
func (m *Manager) HandleText(ctx context.Context, chatID int64, text string) error {
	s := m.session(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateSelectSource {
		return m.ui.SendText(chatID, invalidStateText)
	}
	s.Request = model.Request{View: model.Hot, Source: text, Category: "Custom"}
	return m.showViews(ctx, s)
}

// HandleDocument processes a document upload, expected only in
// AcceptUpload.
func (m *Manager) HandleDocument(ctx context.Context, chatID int64, doc *Upload) error {
	s := m.session(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateAcceptUpload {
		return m.ui.SendText(chatID, invalidStateText)
	}
	return m.acceptUpload(ctx, s, doc)
}

// HandleGetPrefs sends the chat's current mapping as a JSON document to
// be edited and uploaded back.
func (m *Manager) HandleGetPrefs(ctx context.Context, chatID int64) error {
	if !m.cfg.IsChatAllowed(chatID) {
		return m.ui.SendText(chatID, deniedText)
	}
	sources := m.catSources(ctx, chatID)
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return m.ui.SendJSONDocument(chatID, "my_sources.json", append(data, '\n'))
}

// HandleBeginUpload switches the chat into AcceptUpload.
func (m *Manager) HandleBeginUpload(ctx context.Context, chatID int64) error {
	s := m.session(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !m.cfg.IsChatAllowed(chatID) {
		return m.ui.SendText(chatID, deniedText)
	}
	if err := m.ui.SendText(chatID, "Ok, please send the customized JSON file (as an attachment)."); err != nil {
		return err
	}
	s.State = StateAcceptUpload
	return nil
}

// HandleDeletePrefs removes the chat's customized mapping and restarts
// the menu.
func (m *Manager) HandleDeletePrefs(ctx context.Context, chatID int64) error {
	n, err := m.store.Delete(ctx, chatID)
	if err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	text := "Your customized list of sources has been deleted."
	if n == 0 {
		text = "There's no saved list to delete."
	}
	if err := m.ui.SendText(chatID, text); err != nil {
		return err
	}
	return m.HandleStart(ctx, chatID)
}

// --- state transitions ---

// clearButtons removes the previous menu's keyboard. Safe to call when
// no menu exists; edit failures are tolerated since a menu may already
// have been cleaned.
func (m *Manager) clearButtons(s *Session) {
	if s.LastMenuID == 0 {
		return
	}
	if err := m.ui.RemoveButtons(s.ChatID, s.LastMenuID); err != nil {
		m.log.Debug("remove menu buttons", "chat_id", s.ChatID, "message_id", s.LastMenuID, "error", err)
	}
	s.LastMenuID = 0
}

func (m *Manager) showCategories(ctx context.Context, s *Session) error {
	m.clearButtons(s)
	rows := chunkButtons(m.categories(ctx, s.ChatID), 3)
	id, err := m.ui.SendMenu(s.ChatID, "Select a category (or type in a source name):", rows)
	if err != nil {
		return err
	}
	s.LastMenuID = id
	s.State = StateSelectSource
	return nil
}

func (m *Manager) selectCategory(ctx context.Context, s *Session, category string) error {
	m.clearButtons(s)
	s.Request = model.Request{View: model.Hot, Category: category}
	rows := chunkButtons(m.sourcesIn(ctx, s.ChatID, category), 3)
	id, err := m.ui.SendMenu(s.ChatID, fmt.Sprintf("Select a source from %s:", category), rows)
	if err != nil {
		return err
	}
	s.LastMenuID = id
	s.State = StateSelectView
	return nil
}

func (m *Manager) selectSource(ctx context.Context, s *Session, source string) error {
	s.Request.Source = source
	return m.showViews(ctx, s)
}

func (m *Manager) showViews(_ context.Context, s *Session) error {
	m.clearButtons(s)
	labels := make([]string, 0, len(model.Modes()))
	for _, v := range model.Modes() {
		labels = append(labels, v.String())
	}
	rows := chunkButtons(labels, len(labels))
	id, err := m.ui.SendMenu(s.ChatID, fmt.Sprintf("Choose what to view from %s:", s.Request.Source), rows)
	if err != nil {
		return err
	}
	s.LastMenuID = id
	s.State = StateSelectCount
	return nil
}

func (m *Manager) selectView(_ context.Context, s *Session, data string) error {
	m.clearButtons(s)
	s.Request.View = model.ParseViewMode(data)

	labels := make([]string, 0, len(m.cfg.PageSizes))
	for _, n := range m.cfg.PageSizes {
		labels = append(labels, strconv.Itoa(n))
	}
	rows := chunkButtons(labels, len(labels))
	id, err := m.ui.SendMenu(s.ChatID, fmt.Sprintf("How many %s posts?:", s.Request.View), rows)
	if err != nil {
		return err
	}
	s.LastMenuID = id
	s.State = StateIssue
	return nil
}

func (m *Manager) issue(ctx context.Context, s *Session, data string) error {
	m.clearButtons(s)
	count, err := strconv.Atoi(data)
	if err != nil || count < 1 {
		count = 1
	}
	s.Request.Count = count
	s.Request.Cursor = ""
	m.log.Info("issue listing request",
		"chat_id", s.ChatID,
		"source", s.Request.NormalizedSource(),
		"view", s.Request.View.String(),
		"count", s.Request.Count,
	)
	return m.sendPage(ctx, s)
}

func (m *Manager) nextPage(ctx context.Context, s *Session, data string) error {
	m.clearButtons(s)
	if data == "Next" {
		return m.sendPage(ctx, s)
	}
	// "Done" or anything else restarts the menu.
	return m.showCategories(ctx, s)
}

// sendPage fetches one page, delivers its entries in order, and
// re-presents the Done/Next menu. A listing failure degrades to an
// empty page with the cursor preserved.
func (m *Manager) sendPage(ctx context.Context, s *Session) error {
	page, err := m.listing.FetchPage(ctx, s.Request)
	if err != nil {
		m.log.Warn("fetch listing page",
			"chat_id", s.ChatID, "source", s.Request.NormalizedSource(), "error", err)
	}
	s.Request.Cursor = page.NextCursor

	if err := m.deliverer.DeliverPage(ctx, s.ChatID, page.Entries); err != nil {
		return err
	}

	summary := fmt.Sprintf("Shown %d %s posts from %s / %s",
		len(page.Entries), s.Request.View, s.Request.Category, s.Request.Source)
	if err := m.ui.SendText(s.ChatID, summary); err != nil {
		return err
	}

	rows := [][]Button{{
		{Label: "Done", Data: "Done"},
		{Label: "Show another page", Data: "Next"},
	}}
	id, err := m.ui.SendMenu(s.ChatID, "What now?", rows)
	if err != nil {
		return err
	}
	s.LastMenuID = id
	s.State = StateNextPage
	return nil
}

func (m *Manager) acceptUpload(ctx context.Context, s *Session, doc *Upload) error {
	if doc == nil {
		return m.ui.SendText(s.ChatID, "JSON file is missing, please send it as an attachment.")
	}
	if doc.Size > m.cfg.MaxUploadBytes {
		return m.ui.SendText(s.ChatID, fmt.Sprintf(
			"JSON file is too big, must be smaller than %d bytes. Please send it again.", m.cfg.MaxUploadBytes))
	}

	data, err := m.ui.FetchDocument(ctx, doc.FileID, m.cfg.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("fetch uploaded document: %w", err)
	}

	var sources model.CatSources
	if err := json.Unmarshal(data, &sources); err != nil {
		return m.ui.SendText(s.ChatID, fmt.Sprintf("Error while parsing your JSON file: %v.", err))
	}

	if err := m.store.Set(ctx, s.ChatID, sources); err != nil {
		m.log.Error("save preferences", "chat_id", s.ChatID, "error", err)
		return m.ui.SendText(s.ChatID, "Failed to save your preferences, please try again.")
	}

	if err := m.ui.SendText(s.ChatID, "Your sources have been successfully updated."); err != nil {
		return err
	}
	return m.showCategories(ctx, s)
}
