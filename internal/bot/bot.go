package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"red_bot/internal/config"
	"red_bot/internal/delivery"
	"red_bot/internal/listing"
	"red_bot/internal/media"
	"red_bot/internal/prefs"
	"red_bot/internal/session"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Bot is the Telegram bot that drives the menu wizard and delivers
// listing pages into chats.
type Bot struct {
	api      telegramAPI
	httpc    HTTPClient
	cfg      *config.Config
	sessions *session.Manager
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token, preference store,
// and config, wiring up the listing client and delivery pipeline.
func New(token string, store prefs.Store, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := &Bot{
		api:   api,
		httpc: http.DefaultClient,
		cfg:   cfg,
		log:   log,
	}

	downloader := media.NewDownloader(
		cfg.ScratchDir,
		cfg.MaxMediaBytes,
		time.Duration(cfg.DownloadTimeoutSeconds)*time.Second,
		log,
	)
	engine := delivery.New(b, downloader, cfg.Patterns, cfg.MaxMediaBytes, log)
	svc := listing.New(http.DefaultClient, cfg.SkipSelfPosts)
	b.sessions = session.NewManager(b, svc, engine, store, cfg, log)

	return b, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is
// cancelled. Each update is handled on its own goroutine; the session
// manager keeps events for the same chat sequential.
func (b *Bot) Run(ctx context.Context) {
	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "(Re)start the menu."},
		tgbotapi.BotCommand{Command: "help", Description: "Show available commands."},
		tgbotapi.BotCommand{Command: "getsubs", Description: "Download your source list as JSON, to be edited."},
		tgbotapi.BotCommand{Command: "sendsubs", Description: "Upload a customized JSON source list."},
		tgbotapi.BotCommand{Command: "delsubs", Description: "Delete your customized source list."},
	)
	if _, err := b.api.Request(cmds); err != nil {
		b.log.Error("register commands", "error", err)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.log.Error("ack callback", "error", err)
		}
		chatID := cb.Message.Chat.ID
		b.log.Debug("callback", "chat_id", chatID, "data", cb.Data)
		if err := b.sessions.HandleCallback(ctx, chatID, cb.Data); err != nil {
			b.log.Error("handle callback", "chat_id", chatID, "error", err)
		}
		return
	}

	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	var err error
	switch {
	case msg.IsCommand():
		err = b.handleCommand(ctx, chatID, msg.Command())
	case msg.Document != nil:
		err = b.sessions.HandleDocument(ctx, chatID, &session.Upload{
			FileID: msg.Document.FileID,
			Name:   msg.Document.FileName,
			Size:   msg.Document.FileSize,
		})
	case msg.Text != "":
		err = b.sessions.HandleText(ctx, chatID, msg.Text)
	}
	if err != nil {
		b.log.Error("handle message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, cmd string) error {
	b.log.Debug("command", "cmd", cmd, "chat_id", chatID)

	switch cmd {
	case "start":
		return b.sessions.HandleStart(ctx, chatID)
	case "help":
		return b.SendText(chatID, helpText)
	case "getsubs":
		return b.sessions.HandleGetPrefs(ctx, chatID)
	case "sendsubs":
		return b.sessions.HandleBeginUpload(ctx, chatID)
	case "delsubs":
		return b.sessions.HandleDeletePrefs(ctx, chatID)
	default:
		return b.SendText(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

const helpText = `These commands are supported:
/start — (re)start the menu
/help — show this text
/getsubs — download your source list as JSON, to be edited
/sendsubs — upload a customized JSON source list
/delsubs — delete your customized source list`
