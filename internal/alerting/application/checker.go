package application

import (
	"context"
	"errors"
	"time"

	readings "noise-monitor/internal/readings/domain"
)

// Window is the result of inspecting one trailing window.
type Window struct {
	Bound     int64
	Readings  int
	Sustained bool
}

// Checker decides whether every reading in the trailing window is at or above
// the threshold.
type Checker struct {
	store     readings.ReadingStore
	threshold float64
	window    time.Duration
}

// NewChecker constructs a checker.
func NewChecker(store readings.ReadingStore, threshold float64, window time.Duration) (*Checker, error) {
	if store == nil {
		return nil, errors.New("checker: nil reading store")
	}
	if window <= 0 {
		return nil, errors.New("checker: window must be positive")
	}
	return &Checker{store: store, threshold: threshold, window: window}, nil
}

// Sustained reports whether the device stayed at or above the threshold for
// the whole window ending at now. An empty window is not sustained.
func (c *Checker) Sustained(ctx context.Context, deviceID string, now time.Time) (bool, error) {
	w, err := c.Inspect(ctx, deviceID, now)
	if err != nil {
		return false, err
	}
	return w.Sustained, nil
}

// Inspect loads readings with key >= now-window and applies the threshold to
// each of them. Status labels are ignored.
func (c *Checker) Inspect(ctx context.Context, deviceID string, now time.Time) (Window, error) {
	bound := now.Unix() - int64(c.window/time.Second)
	rows, err := c.store.ListSince(ctx, deviceID, bound)
	if err != nil {
		return Window{Bound: bound}, err
	}
	w := Window{Bound: bound, Readings: len(rows)}
	if len(rows) == 0 {
		return w, nil
	}
	for _, row := range rows {
		if row.Noise() < c.threshold {
			return w, nil
		}
	}
	w.Sustained = true
	return w, nil
}
