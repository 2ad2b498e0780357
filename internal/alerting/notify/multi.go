package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	alerting "noise-monitor/internal/alerting/domain"
	"noise-monitor/internal/observability/metrics"
)

// Notifier dispatches a fired alert.
type Notifier interface {
	Notify(ctx context.Context, alert alerting.Alert) error
}

type enabler interface {
	Enabled() bool
}

type namedNotifier struct {
	name     string
	notifier Notifier
}

// MultiNotifier fans one alert out to every configured notifier.
type MultiNotifier struct {
	notifiers []namedNotifier
	logger    zerolog.Logger
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(logger zerolog.Logger) *MultiNotifier {
	return &MultiNotifier{logger: logger}
}

// Add registers a notifier under a channel name used for metrics and logs.
func (m *MultiNotifier) Add(name string, notifier Notifier) *MultiNotifier {
	if m == nil || notifier == nil {
		return m
	}
	m.notifiers = append(m.notifiers, namedNotifier{name: name, notifier: notifier})
	return m
}

// Len returns the number of registered notifiers.
func (m *MultiNotifier) Len() int {
	if m == nil {
		return 0
	}
	return len(m.notifiers)
}

// Notify forwards the alert to all notifiers and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, alert alerting.Alert) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, entry := range m.notifiers {
		if e, ok := entry.notifier.(enabler); ok && !e.Enabled() {
			metrics.IncNotification(entry.name, metrics.ResultSkipped)
			m.logger.Warn().Str("channel", entry.name).Str("device_id", alert.DeviceID).Msg("notification channel not configured")
			continue
		}
		if err := entry.notifier.Notify(ctx, alert); err != nil {
			metrics.IncNotification(entry.name, metrics.ResultError)
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
			continue
		}
		metrics.IncNotification(entry.name, metrics.ResultSuccess)
	}
	return errors.Join(errs...)
}
