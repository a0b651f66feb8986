package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/oraexport/internal/config"
)

// Telegram caps a message at 4096 characters.
const telegramMaxMessage = 4096

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	return newTelegram(cfg, tgbotapi.APIEndpoint)
}

func newTelegram(cfg config.TelegramConfig, endpoint string) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.ChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat_id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Notify(_ context.Context, subject, body string) error {
	for _, part := range splitMessage(subject+"\n\n"+body, telegramMaxMessage) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, part)); err != nil {
			return fmt.Errorf("failed to send telegram notification: %w", err)
		}
	}
	return nil
}

func (t *TelegramNotifier) String() string {
	return "telegram"
}

// splitMessage cuts on line boundaries where it can.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > 0; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
