package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/services/notify"
)

// SendAlertInput alert input
type SendAlertInput struct {
	Subject string `json:"subject" jsonschema:"short alert title"`
	Message string `json:"message" jsonschema:"alert body"`
}

func (r *Registry) addAlertTool(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_alert",
		Description: "Sends a real notification to the user's phone. Use for urgent alerts, daily reports, or when the user asks to send something.",
	}, r.sendAlert)
}

func (r *Registry) sendAlert(ctx context.Context, _ *mcp.CallToolRequest, input SendAlertInput) (*mcp.CallToolResult, any, error) {
	log.Info("[Tool:send_alert] start, subject=%s", input.Subject)

	err := r.notifier.SendAlert(ctx, input.Subject, input.Message)
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		return errorResult(fmt.Sprintf("Error: %s notifications are not configured.", r.notifier.Name())), nil, nil
	case err != nil:
		log.Warn("[Tool:send_alert] failed: %v", err)
		return errorResult(fmt.Sprintf("Notification Error: %v", err)), nil, nil
	}
	log.Info("[Tool:send_alert] done")
	return textResult(fmt.Sprintf("Notification sent to %s successfully.", r.notifier.Name())), nil, nil
}
