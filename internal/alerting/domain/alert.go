package alerting

import "time"

// Alert describes one sustained-noise episode that fired the latch.
type Alert struct {
	DeviceID    string        `json:"device_id"`
	NoiseDB     float64       `json:"noise_db"`
	Threshold   float64       `json:"threshold_db"`
	Window      time.Duration `json:"window"`
	Readings    int           `json:"readings"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// Outcome is the result of evaluating one reading write.
type Outcome string

const (
	OutcomeDeleted      Outcome = "deleted"
	OutcomeReset        Outcome = "reset"
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomeNotSustained Outcome = "not_sustained"
	OutcomeFired        Outcome = "fired"
	OutcomeLostRace     Outcome = "lost_race"
	// OutcomeError is recorded when a store call aborts the evaluation.
	OutcomeError Outcome = "error"
)
