package readings

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Measurement is one raw reading stored under a device at a timestamp key.
type Measurement struct {
	DeviceID       string `json:"device_id"`
	Key            int64  `json:"key"`
	StatusLabel    string `json:"estado"`
	NoiseLevel     string `json:"nivel_dB"`
	VibrationLevel string `json:"vibracion_ms2"`
	FormattedTime  string `json:"fecha"`
}

// Noise returns the parsed noise level in decibels.
func (m Measurement) Noise() float64 {
	return ParseLevel(m.NoiseLevel)
}

// Vibration returns the parsed vibration level.
func (m Measurement) Vibration() float64 {
	return ParseLevel(m.VibrationLevel)
}

// Status classifies the device supplied label.
func (m Measurement) Status() Status {
	return ClassifyStatus(m.StatusLabel)
}

// Time returns the timestamp key as a UTC time.
func (m Measurement) Time() time.Time {
	return time.Unix(m.Key, 0).UTC()
}

// Validate checks the identity fields of a measurement.
func (m Measurement) Validate() error {
	if strings.TrimSpace(m.DeviceID) == "" {
		return ErrMissingDevice
	}
	if strings.ContainsAny(m.DeviceID, "/.#$[]*> \t\r\n") {
		return ErrInvalidDevice
	}
	if m.Key <= 0 {
		return ErrInvalidKey
	}
	return nil
}

// ParseKey converts a decimal timestamp key into Unix seconds.
func ParseKey(value string) (int64, error) {
	key, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || key <= 0 {
		return 0, ErrInvalidKey
	}
	return key, nil
}

// FormatKey renders Unix seconds as a timestamp key.
func FormatKey(key int64) string {
	return strconv.FormatInt(key, 10)
}

// KeyRef addresses a single stored measurement.
type KeyRef struct {
	DeviceID string
	Key      int64
}

// ReadingStore persists measurements per device keyed by timestamp.
type ReadingStore interface {
	// Put overwrites the whole entry and returns the previous value, if any.
	Put(ctx context.Context, m Measurement) (*Measurement, error)
	// Delete removes an entry and returns the removed value, if any.
	Delete(ctx context.Context, deviceID string, key int64) (*Measurement, error)
	// ListSince returns entries with key >= bound in ascending key order.
	ListSince(ctx context.Context, deviceID string, bound int64) ([]Measurement, error)
	// ListLatest returns up to limit entries, newest first.
	ListLatest(ctx context.Context, deviceID string, limit int) ([]Measurement, error)
	// ListKeysBefore returns up to limit entries with key < bound across all devices.
	ListKeysBefore(ctx context.Context, bound int64, limit int) ([]KeyRef, error)
	// Devices lists the device ids that have at least one entry.
	Devices(ctx context.Context) ([]string, error)
}
