package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"membership-billing/internal/domain/ports/adapter"
)

var (
	_ adapter.AlertSink = (*TelegramSink)(nil)
	_ adapter.AlertSink = (*NoopSink)(nil)
)

// TelegramSink posts alerts to an operator chat.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram sink: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Send(_ context.Context, a adapter.Alert) error {
	text := fmt.Sprintf("⚠️ %s\nprovider: %s\norder: %s\n%s", a.Kind, a.Provider, a.OrderID, a.Detail)
	msg := tgbotapi.NewMessage(s.chatID, text)
	_, err := s.bot.Send(msg)
	return err
}

// NoopSink is used when no messenger is configured; alerts still land in the
// structured log at the call sites.
type NoopSink struct{}

func (NoopSink) Send(context.Context, adapter.Alert) error { return nil }
