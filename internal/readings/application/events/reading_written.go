package events

import (
	"time"

	readings "noise-monitor/internal/readings/domain"
)

// ReadingWritten is raised once for every create, update or delete at
// mediciones/{deviceId}/{timestamp}. After is nil for deletions.
type ReadingWritten struct {
	EventID    string                `json:"event_id"`
	DeviceID   string                `json:"device_id"`
	Key        int64                 `json:"key"`
	Before     *readings.Measurement `json:"before,omitempty"`
	After      *readings.Measurement `json:"after,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Deleted reports whether the write removed the entry.
func (e ReadingWritten) Deleted() bool {
	return e.After == nil
}
