// Package delivery turns listing entries into chat messages, downloading
// attached media and falling back tier by tier when a richer send fails.
package delivery

import (
	"context"
	"log/slog"

	"red_bot/internal/config"
	"red_bot/internal/media"
	"red_bot/internal/model"
)

// Sender is the interface for sending chat messages.
type Sender interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, path, caption string) error
	SendVideo(chatID int64, path, caption string) error
	SendDocument(chatID int64, path, caption string) error
}

// Fetcher is the interface for downloading media to local disk.
type Fetcher interface {
	Download(ctx context.Context, rawURL string, kind model.MediaKind) (*media.File, error)
}

// Engine delivers entries to a chat.
type Engine struct {
	sender   Sender
	fetcher  Fetcher
	patterns config.Patterns
	maxBytes int64
	log      *slog.Logger
}

// New creates an Engine. maxBytes is the delivery size ceiling: a file
// exactly at the ceiling is still sent, one byte over falls back to a
// link message.
func New(sender Sender, fetcher Fetcher, patterns config.Patterns, maxBytes int64, log *slog.Logger) *Engine {
	return &Engine{
		sender:   sender,
		fetcher:  fetcher,
		patterns: patterns,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Deliver sends one entry to the chat. Classification misses, download
// failures and oversized files all degrade to a "title + link" text
// message; only a transport failure of that last resort is returned.
func (e *Engine) Deliver(ctx context.Context, chatID int64, entry model.Entry) error {
	file, err := e.prepare(ctx, entry)
	if err != nil {
		return err
	}
	return e.send(chatID, entry, file)
}

// prepare classifies the entry URL and downloads its media. A nil file
// means the entry is delivered as text. Errors are local filesystem
// failures.
func (e *Engine) prepare(ctx context.Context, entry model.Entry) (*media.File, error) {
	if entry.URL == "" {
		return nil, nil
	}
	kind := media.Classify(entry.URL, e.patterns)
	if kind == model.MediaNone {
		return nil, nil
	}
	return e.fetcher.Download(ctx, entry.URL, kind)
}

// send performs the tiered delivery of a prepared entry and removes the
// downloaded file on every exit path.
func (e *Engine) send(chatID int64, entry model.Entry, file *media.File) error {
	if entry.URL == "" {
		return e.sender.SendText(chatID, entry.Title)
	}
	alt := entry.Title + "\n" + entry.URL
	if file == nil {
		return e.sender.SendText(chatID, alt)
	}

	defer func() {
		if err := file.Remove(); err != nil {
			e.log.Error("remove downloaded file", "path", file.Path, "error", err)
		}
	}()

	if file.Size > e.maxBytes {
		e.log.Info("file exceeds size ceiling, sending link instead",
			"path", file.Path, "size", file.Size, "ceiling", e.maxBytes)
		return e.sender.SendText(chatID, alt)
	}

	var err error
	switch file.Kind {
	case model.MediaImage:
		err = e.sender.SendPhoto(chatID, file.Path, entry.Title)
		if err != nil {
			// Telegram refuses photos over certain dimensions;
			// a document upload has no such limits.
			err = e.sender.SendDocument(chatID, file.Path, entry.Title)
		}
	case model.MediaVideo:
		err = e.sender.SendVideo(chatID, file.Path, entry.Title)
	}
	if err != nil {
		e.log.Info("media send failed, sending link instead", "url", entry.URL, "error", err)
		return e.sender.SendText(chatID, alt)
	}
	return nil
}

type prepared struct {
	file *media.File
	err  error
}

// DeliverPage delivers all entries of a page in listing order. Downloads
// are issued concurrently ahead of the sends; messages still reach the
// chat in order because each send awaits its own slot in sequence.
//
// Per-entry filesystem failures are logged and skipped; a transport
// failure aborts the page since the chat channel is unusable.
func (e *Engine) DeliverPage(ctx context.Context, chatID int64, entries []model.Entry) error {
	slots := make([]chan prepared, len(entries))
	for i, entry := range entries {
		slots[i] = make(chan prepared, 1)
		go func(i int, entry model.Entry) {
			f, err := e.prepare(ctx, entry)
			slots[i] <- prepared{file: f, err: err}
		}(i, entry)
	}

	for i, entry := range entries {
		res := <-slots[i]
		if res.err != nil {
			e.log.Error("prepare entry", "title", entry.Title, "error", res.err)
			continue
		}
		if err := e.send(chatID, entry, res.file); err != nil {
			// Drain remaining downloads so their files get cleaned up.
			for _, slot := range slots[i+1:] {
				if late := <-slot; late.file != nil {
					_ = late.file.Remove()
				}
			}
			return err
		}
	}
	return nil
}
