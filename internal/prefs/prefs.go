// Package prefs persists the per-chat category→source preference mapping.
package prefs

import (
	"context"

	"red_bot/internal/model"
)

// Store is the interface for preference persistence.
type Store interface {
	// Get returns the stored mapping for a chat, or nil when the chat
	// has no customized preferences.
	Get(ctx context.Context, chatID int64) (model.CatSources, error)
	// Set stores or replaces the mapping for a chat.
	Set(ctx context.Context, chatID int64, sources model.CatSources) error
	// Delete removes a chat's mapping and reports how many rows were
	// removed.
	Delete(ctx context.Context, chatID int64) (int64, error)

	Close() error
}
