package memory

import (
	"context"
	"sort"
	"sync"

	readings "noise-monitor/internal/readings/domain"
)

// ReadingRepository is an in-memory reading store.
type ReadingRepository struct {
	mu      sync.RWMutex
	devices map[string]map[int64]readings.Measurement
}

// NewReadingRepository constructs a repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{devices: make(map[string]map[int64]readings.Measurement)}
}

// Put stores a measurement, overwriting any entry at the same key.
func (r *ReadingRepository) Put(ctx context.Context, m readings.Measurement) (*readings.Measurement, error) {
	_ = ctx
	if err := m.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.devices[m.DeviceID]
	if entries == nil {
		entries = make(map[int64]readings.Measurement)
		r.devices[m.DeviceID] = entries
	}
	var before *readings.Measurement
	if prev, ok := entries[m.Key]; ok {
		before = &prev
	}
	entries[m.Key] = m
	return before, nil
}

// Delete removes a measurement.
func (r *ReadingRepository) Delete(ctx context.Context, deviceID string, key int64) (*readings.Measurement, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.devices[deviceID]
	prev, ok := entries[key]
	if !ok {
		return nil, nil
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(r.devices, deviceID)
	}
	return &prev, nil
}

// ListSince returns measurements with key >= bound, oldest first.
func (r *ReadingRepository) ListSince(ctx context.Context, deviceID string, bound int64) ([]readings.Measurement, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]readings.Measurement, 0)
	for key, m := range r.devices[deviceID] {
		if key >= bound {
			result = append(result, m)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// ListLatest returns up to limit measurements, newest first.
func (r *ReadingRepository) ListLatest(ctx context.Context, deviceID string, limit int) ([]readings.Measurement, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]readings.Measurement, 0, len(r.devices[deviceID]))
	for _, m := range r.devices[deviceID] {
		result = append(result, m)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Key > result[j].Key })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListKeysBefore returns up to limit keys older than bound.
func (r *ReadingRepository) ListKeysBefore(ctx context.Context, bound int64, limit int) ([]readings.KeyRef, error) {
	_ = ctx
	r.mu.RLock()
	refs := make([]readings.KeyRef, 0)
	for deviceID, entries := range r.devices {
		for key := range entries {
			if key < bound {
				refs = append(refs, readings.KeyRef{DeviceID: deviceID, Key: key})
			}
		}
	}
	r.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Key != refs[j].Key {
			return refs[i].Key < refs[j].Key
		}
		return refs[i].DeviceID < refs[j].DeviceID
	})
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// Devices lists known device ids in lexical order.
func (r *ReadingRepository) Devices(ctx context.Context) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
