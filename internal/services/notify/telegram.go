package notify

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/m-mizutani/goerr/v2"
)

// Telegram sends through a bot to one chat. The bot client is created on the
// first send since construction performs a getMe round trip.
type Telegram struct {
	token    string
	chatID   int64
	endpoint string

	once   sync.Once
	bot    *tgbotapi.BotAPI
	botErr error
}

// NewTelegram creates a Telegram notifier. endpoint overrides the Bot API
// endpoint format, empty uses the public API.
func NewTelegram(token string, chatID int64, endpoint string) *Telegram {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{token: token, chatID: chatID, endpoint: endpoint}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) SendAlert(ctx context.Context, subject, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.once.Do(func() {
		t.bot, t.botErr = tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	})
	if t.botErr != nil {
		return goerr.Wrap(ErrDelivery, "telegram bot init failed", goerr.V("cause", t.botErr.Error()))
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, FormatAlert(subject, message))); err != nil {
		return goerr.Wrap(ErrDelivery, "telegram rejected alert", goerr.V("cause", err.Error()))
	}
	log.Info("alert %q sent to telegram", subject)
	return nil
}
