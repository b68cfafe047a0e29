package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// SlackNotifier sends alerts to Slack via an incoming webhook.
type SlackNotifier struct {
	WebhookURL string

	// Channel overrides the webhook's default channel when set.
	Channel string

	Client *http.Client
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Channel:    channel,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the alert to the configured webhook.
func (s *SlackNotifier) Notify(ctx context.Context, alert Alert) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, s.message(alert)); err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	return nil
}

func (s *SlackNotifier) message(alert Alert) *slack.WebhookMessage {
	color := "good"
	switch {
	case alert.Result.ShouldFail:
		color = "danger"
	case alert.Result.HasRegression:
		color = "warning"
	}

	fields := []slack.AttachmentField{
		{Title: "Commit", Value: commitLink(alert), Short: true},
		{Title: "Baseline", Value: alert.Result.Selector, Short: true},
	}
	if n := len(alert.Result.Review); n > 0 {
		fields = append(fields, slack.AttachmentField{
			Title: "Needs review",
			Value: fmt.Sprintf("%d case(s) with unrecognized units", n),
			Short: true,
		})
	}

	return &slack.WebhookMessage{
		Channel: s.Channel,
		Text:    alert.Title(),
		Attachments: []slack.Attachment{{
			Color:     color,
			Title:     alert.Group,
			TitleLink: alert.ReportURL,
			Text:      bulletList(alert.Lines()),
			Fields:    fields,
		}},
	}
}

func commitLink(alert Alert) string {
	if alert.Commit.URL == "" {
		return shortID(alert.Commit.ID)
	}
	return fmt.Sprintf("<%s|%s>", alert.Commit.URL, shortID(alert.Commit.ID))
}
