package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	alerting "noise-monitor/internal/alerting/domain"
	"noise-monitor/internal/observability/metrics"
	"noise-monitor/internal/readings/application/events"
	readings "noise-monitor/internal/readings/domain"
)

const (
	// DefaultThreshold is the noise level, in dB, treated as hazardous.
	DefaultThreshold = 65.0
	// DefaultWindow is the trailing window a high level must cover.
	DefaultWindow = 60 * time.Second
)

// Notifier dispatches a fired alert.
type Notifier interface {
	Notify(ctx context.Context, alert alerting.Alert) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Evaluator runs once per reading write and drives the per-device latch.
type Evaluator struct {
	readings  readings.ReadingStore
	latches   alerting.LatchStore
	notifier  Notifier
	clock     Clock
	threshold float64
	window    time.Duration
	mode      alerting.LatchMode
	logger    zerolog.Logger
	checker   *Checker
}

// EvaluatorOption customizes the evaluator.
type EvaluatorOption func(*Evaluator)

// WithNotifier assigns a notifier.
func WithNotifier(notifier Notifier) EvaluatorOption {
	return func(e *Evaluator) {
		e.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) EvaluatorOption {
	return func(e *Evaluator) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithThreshold overrides the noise threshold.
func WithThreshold(threshold float64) EvaluatorOption {
	return func(e *Evaluator) {
		e.threshold = threshold
	}
}

// WithWindow overrides the sustained window.
func WithWindow(window time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.window = window
	}
}

// WithLatchMode selects the fire ordering.
func WithLatchMode(mode alerting.LatchMode) EvaluatorOption {
	return func(e *Evaluator) {
		if mode != "" {
			e.mode = mode
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(store readings.ReadingStore, latches alerting.LatchStore, opts ...EvaluatorOption) (*Evaluator, error) {
	if store == nil || latches == nil {
		return nil, alerting.ErrNilStore
	}
	e := &Evaluator{
		readings:  store,
		latches:   latches,
		clock:     systemClock{},
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		mode:      alerting.LatchModeCompareAndSet,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.threshold <= 0 {
		return nil, errors.New("evaluator: threshold must be positive")
	}
	if _, err := alerting.ParseLatchMode(string(e.mode)); err != nil {
		return nil, err
	}
	checker, err := NewChecker(store, e.threshold, e.window)
	if err != nil {
		return nil, err
	}
	e.checker = checker
	return e, nil
}

// Threshold returns the configured threshold in dB.
func (e *Evaluator) Threshold() float64 { return e.threshold }

// Window returns the configured sustained window.
func (e *Evaluator) Window() time.Duration { return e.window }

// HandleReadingWritten evaluates one write. Store errors abort the
// evaluation and are returned; notifier errors are logged and swallowed.
// Cancellation of ctx is ignored: once started, an evaluation runs to
// completion so a claimed latch is always followed by its dispatch.
func (e *Evaluator) HandleReadingWritten(ctx context.Context, evt events.ReadingWritten) (outcome alerting.Outcome, err error) {
	if e == nil {
		return alerting.OutcomeError, errors.New("evaluator: nil evaluator")
	}
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	deviceID := evt.DeviceID
	defer func() {
		if err != nil {
			outcome = alerting.OutcomeError
		}
		metrics.ObserveEvaluation(string(outcome), time.Since(started))
		event := e.logger.Debug()
		if err != nil {
			event = e.logger.Error().Err(err)
		} else if outcome == alerting.OutcomeFired {
			event = e.logger.Info()
		}
		event.Str("device_id", deviceID).Int64("key", evt.Key).Str("outcome", string(outcome)).Msg("reading evaluated")
	}()

	if evt.After == nil {
		return alerting.OutcomeDeleted, nil
	}
	if deviceID == "" {
		deviceID = evt.After.DeviceID
	}
	if deviceID == "" {
		return alerting.OutcomeError, alerting.ErrMissingDevice
	}

	noise := evt.After.Noise()
	if evt.After.Status() == readings.StatusNormal || noise < e.threshold {
		if err := e.latches.Set(ctx, deviceID, false); err != nil {
			return alerting.OutcomeError, err
		}
		return alerting.OutcomeReset, nil
	}

	alerted, err := e.latches.Get(ctx, deviceID)
	if err != nil {
		return alerting.OutcomeError, err
	}
	if alerted {
		return alerting.OutcomeSuppressed, nil
	}

	now := e.clock.Now()
	window, err := e.checker.Inspect(ctx, deviceID, now)
	if err != nil {
		return alerting.OutcomeError, err
	}
	metrics.ObserveWindow(window.Readings)
	if !window.Sustained {
		return alerting.OutcomeNotSustained, nil
	}

	alert := alerting.Alert{
		DeviceID:    deviceID,
		NoiseDB:     noise,
		Threshold:   e.threshold,
		Window:      e.window,
		Readings:    window.Readings,
		TriggeredAt: now.UTC(),
	}
	return e.fire(ctx, alert)
}

func (e *Evaluator) fire(ctx context.Context, alert alerting.Alert) (alerting.Outcome, error) {
	if e.mode == alerting.LatchModeNotifyThenSet {
		e.dispatch(ctx, alert)
		if err := e.latches.Set(ctx, alert.DeviceID, true); err != nil {
			return alerting.OutcomeError, err
		}
		return alerting.OutcomeFired, nil
	}

	claimed, err := e.latches.CompareAndSet(ctx, alert.DeviceID, false, true)
	if err != nil {
		return alerting.OutcomeError, err
	}
	if !claimed {
		return alerting.OutcomeLostRace, nil
	}
	e.dispatch(ctx, alert)
	return alerting.OutcomeFired, nil
}

func (e *Evaluator) dispatch(ctx context.Context, alert alerting.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, alert); err != nil {
		e.logger.Warn().Err(err).Str("device_id", alert.DeviceID).Float64("noise_db", alert.NoiseDB).Msg("alert notification failed")
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
