package notify

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// Slack posts to an incoming webhook
type Slack struct {
	webhookURL string
}

// NewSlack creates a Slack incoming-webhook notifier
func NewSlack(webhookURL string) *Slack {
	return &Slack{webhookURL: webhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) SendAlert(ctx context.Context, subject, message string) error {
	msg := &slack.WebhookMessage{Text: FormatAlert(subject, message)}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return goerr.Wrap(ErrDelivery, "slack rejected alert", goerr.V("cause", err.Error()))
	}
	log.Info("alert %q sent to slack", subject)
	return nil
}
