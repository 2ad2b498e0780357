package interfaces

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	readings "noise-monitor/internal/readings/domain"
)

// Text is a JSON field that accepts a string, a number or null.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

// Payload is a reading as sent by devices. English aliases are accepted.
type Payload struct {
	DeviceID       string `json:"deviceId"`
	DeviceIDAlt    string `json:"device_id"`
	Timestamp      Text   `json:"timestamp"`
	Estado         Text   `json:"estado"`
	Status         Text   `json:"status"`
	NivelDB        Text   `json:"nivel_dB"`
	NoiseLevel     Text   `json:"noise_level"`
	VibracionMS2   Text   `json:"vibracion_ms2"`
	VibrationLevel Text   `json:"vibration_level"`
	Fecha          Text   `json:"fecha"`
	FormattedTime  Text   `json:"formatted_time"`
}

// ToMeasurement builds a measurement. deviceID and key, when non-empty,
// override the payload identity (topic-addressed transports). A missing
// timestamp yields key 0 so the ingest service stamps it.
func (p Payload) ToMeasurement(deviceID, key string) (readings.Measurement, error) {
	if deviceID == "" {
		deviceID = first(p.DeviceID, p.DeviceIDAlt)
	}
	if key == "" {
		key = string(p.Timestamp)
	}
	m := readings.Measurement{
		DeviceID:       strings.TrimSpace(deviceID),
		StatusLabel:    first(string(p.Estado), string(p.Status)),
		NoiseLevel:     first(string(p.NivelDB), string(p.NoiseLevel)),
		VibrationLevel: first(string(p.VibracionMS2), string(p.VibrationLevel)),
		FormattedTime:  first(string(p.Fecha), string(p.FormattedTime)),
	}
	if strings.TrimSpace(key) != "" {
		parsed, err := ParseTimestampKey(key)
		if err != nil {
			return m, err
		}
		m.Key = parsed
	}
	return m, nil
}

// ParseTimestampKey accepts Unix seconds or milliseconds.
func ParseTimestampKey(value string) (int64, error) {
	key, err := readings.ParseKey(value)
	if err != nil {
		return 0, err
	}
	if key > 1_000_000_000_000 {
		key /= 1000
	}
	return key, nil
}

func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ProcessedMeasurement is the dashboard view of a stored reading.
type ProcessedMeasurement struct {
	ID        string  `json:"id"`
	Fecha     string  `json:"fecha"`
	Noise     float64 `json:"noise"`
	Vibration float64 `json:"vibration"`
	Status    string  `json:"status"`
}

// Process converts stored readings into dashboard rows, keeping input order.
func Process(items []readings.Measurement) []ProcessedMeasurement {
	out := make([]ProcessedMeasurement, 0, len(items))
	for _, m := range items {
		fecha := m.FormattedTime
		if fecha == "" {
			fecha = m.Time().Format("2006-01-02 15:04:05")
		}
		out = append(out, ProcessedMeasurement{
			ID:        strconv.FormatInt(m.Key, 10),
			Fecha:     fecha,
			Noise:     m.Noise(),
			Vibration: m.Vibration(),
			Status:    string(m.Status()),
		})
	}
	return out
}
