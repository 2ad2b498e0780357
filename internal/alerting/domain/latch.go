package alerting

import (
	"context"
	"time"
)

// LatchState is the per-device alert latch. A device with no stored state is Armed.
type LatchState struct {
	DeviceID  string    `json:"device_id"`
	Alerted   bool      `json:"alerted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LatchStore persists one boolean latch per device.
type LatchStore interface {
	// Get returns the latch value; an absent entry reads as false.
	Get(ctx context.Context, deviceID string) (bool, error)
	// Set writes the latch value unconditionally.
	Set(ctx context.Context, deviceID string, alerted bool) error
	// CompareAndSet writes next only when the current value equals old.
	// An absent entry compares as false.
	CompareAndSet(ctx context.Context, deviceID string, old, next bool) (bool, error)
	// List returns every stored latch ordered by device id.
	List(ctx context.Context) ([]LatchState, error)
}

// LatchMode selects how a fire claims the latch.
type LatchMode string

const (
	// LatchModeCompareAndSet claims the latch before dispatching the notification,
	// so concurrent fires for one device notify once. A process crash between
	// the claim and the send leaves the latch Fired with no alert delivered;
	// the device stays silent until a quiet reading resets it.
	LatchModeCompareAndSet LatchMode = "cas"
	// LatchModeNotifyThenSet dispatches first and then sets the latch unconditionally.
	LatchModeNotifyThenSet LatchMode = "notify-then-set"
)

// ParseLatchMode maps a configuration value onto a LatchMode.
func ParseLatchMode(value string) (LatchMode, error) {
	switch LatchMode(value) {
	case "", LatchModeCompareAndSet:
		return LatchModeCompareAndSet, nil
	case LatchModeNotifyThenSet:
		return LatchModeNotifyThenSet, nil
	default:
		return "", ErrInvalidLatchMode
	}
}
