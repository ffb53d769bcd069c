package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Discord posts to a channel webhook
type Discord struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscord creates a Discord webhook notifier
func NewDiscord(webhookURL string) *Discord {
	return &Discord{webhookURL: webhookURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (d *Discord) Name() string { return "discord" }

// SendAlert expects 204 No Content
func (d *Discord) SendAlert(ctx context.Context, subject, message string) error {
	payload, err := json.Marshal(map[string]string{"content": FormatAlert(subject, message)})
	if err != nil {
		return goerr.Wrap(err, "failed to encode discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return goerr.Wrap(err, "failed to build discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "discord connection error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return goerr.Wrap(ErrDelivery, "discord rejected alert", goerr.V("status", resp.StatusCode))
	}
	log.Info("alert %q sent to discord", subject)
	return nil
}
