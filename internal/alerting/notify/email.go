package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	alerting "noise-monitor/internal/alerting/domain"
)

// DefaultSender is the From address used when none is configured.
const DefaultSender = "noreply@monitoreo-ambiental.com"

// EmailNotifier renders an alert and sends it through a Mailer.
type EmailNotifier struct {
	mailer   Mailer
	template *Template
	from     string
	to       string
	logger   zerolog.Logger
}

// EmailOption configures the notifier.
type EmailOption func(*EmailNotifier)

// WithTemplate overrides the default Spanish copy.
func WithTemplate(tpl *Template) EmailOption {
	return func(n *EmailNotifier) {
		if tpl != nil {
			n.template = tpl
		}
	}
}

// WithEmailLogger assigns a logger.
func WithEmailLogger(logger zerolog.Logger) EmailOption {
	return func(n *EmailNotifier) {
		n.logger = logger
	}
}

// NewEmailNotifier constructs an email notifier.
func NewEmailNotifier(mailer Mailer, from, to string, opts ...EmailOption) (*EmailNotifier, error) {
	if mailer == nil {
		return nil, errors.New("email notifier: nil mailer")
	}
	if strings.TrimSpace(from) == "" {
		from = DefaultSender
	}
	tpl, err := NewTemplate("", "", "")
	if err != nil {
		return nil, err
	}
	n := &EmailNotifier{
		mailer:   mailer,
		template: tpl,
		from:     from,
		to:       strings.TrimSpace(to),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Enabled reports whether a recipient and mailer credentials are present.
func (n *EmailNotifier) Enabled() bool {
	if n == nil || n.to == "" {
		return false
	}
	if e, ok := n.mailer.(enabler); ok {
		return e.Enabled()
	}
	return true
}

// Notify sends the alert email. A missing recipient or mailer credentials
// is logged and treated as success.
func (n *EmailNotifier) Notify(ctx context.Context, alert alerting.Alert) error {
	if n == nil {
		return nil
	}
	if n.to == "" {
		n.logger.Warn().Str("device_id", alert.DeviceID).Msg("alert email skipped: no recipient configured")
		return nil
	}
	content, err := n.template.Render(BuildTemplateData(alert))
	if err != nil {
		return err
	}
	err = n.mailer.Send(ctx, Message{
		From:    n.from,
		To:      n.to,
		Subject: content.Subject,
		Text:    content.Text,
		HTML:    content.HTML,
	})
	if errors.Is(err, ErrMailerNotConfigured) {
		n.logger.Warn().Str("device_id", alert.DeviceID).Msg("alert email skipped: mailer not configured")
		return nil
	}
	if err != nil {
		return err
	}
	n.logger.Info().Str("device_id", alert.DeviceID).Str("to", n.to).Msg("alert email sent")
	return nil
}
