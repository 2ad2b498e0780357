package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	alerting "noise-monitor/internal/alerting/domain"
)

// Channel delivers rendered content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

type webhookPayload struct {
	Text string `json:"text"`
}

// WebhookChannel posts notifications to a chat webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts the content as a Slack-compatible text payload.
func (w *WebhookChannel) Send(ctx context.Context, content string) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	body, err := json.Marshal(webhookPayload{Text: content})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

// ChannelNotifier renders the plain-text body and sends it on a Channel.
type ChannelNotifier struct {
	channel  Channel
	template *Template
}

// NewChannelNotifier constructs a channel notifier. A nil template uses the defaults.
func NewChannelNotifier(channel Channel, tpl *Template) (*ChannelNotifier, error) {
	if channel == nil {
		return nil, errors.New("channel notifier: nil channel")
	}
	if tpl == nil {
		defaultTemplate, err := NewTemplate("", "", "")
		if err != nil {
			return nil, err
		}
		tpl = defaultTemplate
	}
	return &ChannelNotifier{channel: channel, template: tpl}, nil
}

// Notify renders and sends the alert.
func (n *ChannelNotifier) Notify(ctx context.Context, alert alerting.Alert) error {
	content, err := n.template.Render(BuildTemplateData(alert))
	if err != nil {
		return err
	}
	return n.channel.Send(ctx, content.Subject+"\n\n"+content.Text)
}
