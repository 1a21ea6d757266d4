package notify

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mealsync/internal/config"
)

// Telegram forwards toasts to a Telegram chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram sink from the bot token and chat id in cfg.
func NewTelegram(cfg *config.Config) (*Telegram, error) {
	return NewTelegramWithEndpoint(cfg, tgbotapi.APIEndpoint, &http.Client{})
}

// NewTelegramWithEndpoint lets tests point the bot at a fake API server.
func NewTelegramWithEndpoint(cfg *config.Config, endpoint string, client *http.Client) (*Telegram, error) {
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID environment variable not set")
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: cfg.TelegramChatID}, nil
}

func (t *Telegram) Notify(_ context.Context, toast Toast) error {
	text := fmt.Sprintf("%s *%s*", symbol(toast.Level), toast.Title)
	if toast.Message != "" {
		text += "\n" + toast.Message
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram toast: %w", err)
	}
	return nil
}
