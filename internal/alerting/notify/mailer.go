package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMailerNotConfigured is returned by a mailer that lacks credentials.
var ErrMailerNotConfigured = errors.New("mailer: not configured")

// DefaultSendGridBaseURL is the public SendGrid API endpoint.
const DefaultSendGridBaseURL = "https://api.sendgrid.com"

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// SendGridOption configures the mailer.
type SendGridOption func(*SendGridMailer)

// WithSendGridBaseURL overrides the API base URL.
func WithSendGridBaseURL(baseURL string) SendGridOption {
	return func(m *SendGridMailer) {
		if baseURL != "" {
			m.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithSendGridClient overrides the HTTP client.
func WithSendGridClient(client *http.Client) SendGridOption {
	return func(m *SendGridMailer) {
		if client != nil {
			m.client = client
		}
	}
}

// NewSendGridMailer constructs a mailer. An empty API key yields a mailer
// whose Send returns ErrMailerNotConfigured.
func NewSendGridMailer(apiKey string, timeout time.Duration, opts ...SendGridOption) *SendGridMailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	m := &SendGridMailer{
		apiKey:  apiKey,
		baseURL: DefaultSendGridBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether an API key is configured.
func (m *SendGridMailer) Enabled() bool {
	return m != nil && m.apiKey != ""
}

// Send posts the message to /v3/mail/send.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if m == nil || m.apiKey == "" {
		return ErrMailerNotConfigured
	}
	payload := sendGridPayload{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: msg.To}}}},
		From:             sendGridAddress{Email: msg.From},
		Subject:          msg.Subject,
	}
	if msg.Text != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid: non-2xx response %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
