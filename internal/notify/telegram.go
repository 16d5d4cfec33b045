package notify

import (
	"context"

	"github.com/harunnryd/yakusoku/internal/agreement"
	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, yakusokuErrors.Wrap(err, "failed to init telegram bot")
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) send(text string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
	return err
}

func (t *TelegramNotifier) OnWarning(ctx context.Context, a *agreement.Agreement) error {
	return t.send(warningText(a))
}

func (t *TelegramNotifier) OnGraceStarted(ctx context.Context, a *agreement.Agreement) error {
	return t.send(graceText(a))
}

func (t *TelegramNotifier) OnViolation(ctx context.Context, a *agreement.Agreement) error {
	return t.send(violationText(a))
}

func (t *TelegramNotifier) OnCompleted(ctx context.Context, a *agreement.Agreement) error {
	return t.send(completedText(a))
}
