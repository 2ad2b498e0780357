package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	alerting "noise-monitor/internal/alerting/domain"
)

// LatchRepository keeps alert latches in process memory.
type LatchRepository struct {
	mu      sync.Mutex
	latches map[string]alerting.LatchState
	now     func() time.Time
}

// NewLatchRepository constructs a repository.
func NewLatchRepository() *LatchRepository {
	return &LatchRepository{
		latches: make(map[string]alerting.LatchState),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the latch value for a device.
func (r *LatchRepository) Get(ctx context.Context, deviceID string) (bool, error) {
	_ = ctx
	if deviceID == "" {
		return false, alerting.ErrMissingDevice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latches[deviceID].Alerted, nil
}

// Set writes the latch value.
func (r *LatchRepository) Set(ctx context.Context, deviceID string, alerted bool) error {
	_ = ctx
	if deviceID == "" {
		return alerting.ErrMissingDevice
	}
	r.mu.Lock()
	r.latches[deviceID] = alerting.LatchState{DeviceID: deviceID, Alerted: alerted, UpdatedAt: r.now()}
	r.mu.Unlock()
	return nil
}

// CompareAndSet writes next when the stored value equals old.
func (r *LatchRepository) CompareAndSet(ctx context.Context, deviceID string, old, next bool) (bool, error) {
	_ = ctx
	if deviceID == "" {
		return false, alerting.ErrMissingDevice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latches[deviceID].Alerted != old {
		return false, nil
	}
	r.latches[deviceID] = alerting.LatchState{DeviceID: deviceID, Alerted: next, UpdatedAt: r.now()}
	return true, nil
}

// List returns all latches ordered by device id.
func (r *LatchRepository) List(ctx context.Context) ([]alerting.LatchState, error) {
	_ = ctx
	r.mu.Lock()
	out := make([]alerting.LatchState, 0, len(r.latches))
	for _, state := range r.latches {
		out = append(out, state)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}
