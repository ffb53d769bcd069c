// Package notify delivers agent alerts to chat channels.
package notify

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"

	"github.com/run-bigpig/watchdog/internal/logger"
)

var log = logger.New("notify")

var (
	ErrNotConfigured = goerr.New("notification channel not configured")
	ErrDelivery      = goerr.New("notification delivery failed")
)

// Notifier sends one alert
type Notifier interface {
	SendAlert(ctx context.Context, subject, message string) error
	Name() string
}

// Settings channel credentials
type Settings struct {
	Kind              string
	DiscordWebhookURL string
	SlackWebhookURL   string
	TelegramBotToken  string
	TelegramChatID    int64
}

// New picks the notifier for Settings.Kind. Missing credentials yield a
// notifier that reports ErrNotConfigured on every send.
func New(s Settings) Notifier {
	switch s.Kind {
	case "slack":
		if s.SlackWebhookURL == "" {
			return unconfigured{kind: s.Kind}
		}
		return NewSlack(s.SlackWebhookURL)
	case "telegram":
		if s.TelegramBotToken == "" || s.TelegramChatID == 0 {
			return unconfigured{kind: s.Kind}
		}
		return NewTelegram(s.TelegramBotToken, s.TelegramChatID, "")
	default:
		if s.DiscordWebhookURL == "" {
			return unconfigured{kind: "discord"}
		}
		return NewDiscord(s.DiscordWebhookURL)
	}
}

// FormatAlert the alert body shared by every channel
func FormatAlert(subject, message string) string {
	return fmt.Sprintf("AGENT ALERT: %s\n\n%s", subject, message)
}

type unconfigured struct {
	kind string
}

func (u unconfigured) Name() string { return u.kind }

func (u unconfigured) SendAlert(context.Context, string, string) error {
	return goerr.Wrap(ErrNotConfigured, "cannot send alert", goerr.V("channel", u.kind))
}
