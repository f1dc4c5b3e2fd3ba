package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier publishes human-readable download events to an external channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// WebhookNotifier posts events to a webhook endpoint as JSON.
type WebhookNotifier struct {
	client     *resty.Client
	webhookURL string
}

type webhookPayload struct {
	Content string `json:"content"`
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second)

	return &WebhookNotifier{
		client:     client,
		webhookURL: webhookURL,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, message string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{Content: message}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	return nil
}

// NopNotifier discards every notification. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
