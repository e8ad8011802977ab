package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// pollTimeout is the long-polling timeout in seconds.
const pollTimeout = 30

// Telegram is the Telegram Bot API transport.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTelegram authenticates with the Bot API.
func NewTelegram(token string, logger *slog.Logger) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{api: api, logger: logger}, nil
}

// SendText sends a plain text message.
func (t *Telegram) SendText(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// SendDocument uploads data as a file.
func (t *Telegram) SendDocument(_ context.Context, chatID int64, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("telegram document to %d: %w", chatID, err)
	}
	return nil
}

// Run long-polls for updates and hands each message to bot in its own goroutine until
// ctx is cancelled. It waits for in-flight handlers before returning.
func (t *Telegram) Run(ctx context.Context, bot *Bot) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := t.api.GetUpdatesChan(u)

	t.logger.Info("telegram bot started", "username", t.api.Self.UserName)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.logger.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			msg := Message{ChatID: update.Message.Chat.ID, Text: update.Message.Text}
			wg.Add(1)
			go func() {
				defer wg.Done()
				bot.Handle(ctx, msg)
			}()
		}
	}
}
