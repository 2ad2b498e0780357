package readings

import "strings"

// Status is the normalized classification of a device status label.
type Status string

const (
	StatusNormal   Status = "Verde"
	StatusCaution  Status = "Amarillo"
	StatusCritical Status = "Rojo"
	StatusUnknown  Status = "Desconocido"
)

// ClassifyStatus maps a free-text label to a Status, ignoring case.
func ClassifyStatus(label string) Status {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "verde", "normal", "green":
		return StatusNormal
	case "amarillo", "caution", "yellow":
		return StatusCaution
	case "rojo", "critical", "red":
		return StatusCritical
	default:
		return StatusUnknown
	}
}
