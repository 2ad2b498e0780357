package notify

import (
	"bytes"
	"errors"
	htmltemplate "html/template"
	"strconv"
	"text/template"
	"time"

	alerting "noise-monitor/internal/alerting/domain"
)

// DefaultSubject is the email subject for a sustained-noise alert.
const DefaultSubject = "Alerta de Prevención: Exposición a Ruido Elevado"

// DefaultTextTemplate is the plain-text body.
const DefaultTextTemplate = `Hola.

Se ha detectado un nivel de ruido sostenido superior a {{.Threshold}} dB durante más de {{.Duration}} en el sensor con ID: {{.DeviceID}}.

Se recomienda tomar precauciones para proteger la audición en la zona monitoreada.`

// DefaultHTMLTemplate is the HTML body.
const DefaultHTMLTemplate = `<p>Hola.</p>
<p>Se ha detectado un nivel de ruido sostenido superior a <strong>{{.Threshold}} dB</strong> durante más de <strong>{{.Duration}}</strong> en el sensor con ID: <strong>{{.DeviceID}}</strong>.</p>
<p>Se recomienda tomar precauciones para proteger la audición en la zona monitoreada.</p>`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	DeviceID    string
	Threshold   string
	Duration    string
	NoiseDB     string
	Readings    int
	TriggeredAt string
}

// Content is a rendered notification.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// Template renders notification content.
type Template struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

// NewTemplate parses the text and HTML bodies, falling back to the defaults
// for empty arguments.
func NewTemplate(subject, text, html string) (*Template, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if text == "" {
		text = DefaultTextTemplate
	}
	if html == "" {
		html = DefaultHTMLTemplate
	}
	parsedText, err := template.New("alert-text").Parse(text)
	if err != nil {
		return nil, err
	}
	parsedHTML, err := htmltemplate.New("alert-html").Parse(html)
	if err != nil {
		return nil, err
	}
	return &Template{subject: subject, text: parsedText, html: parsedHTML}, nil
}

// Render applies the templates to data.
func (t *Template) Render(data TemplateData) (Content, error) {
	if t == nil || t.text == nil || t.html == nil {
		return Content{}, errors.New("alert template: nil")
	}
	var text, html bytes.Buffer
	if err := t.text.Execute(&text, data); err != nil {
		return Content{}, err
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Content{}, err
	}
	return Content{Subject: t.subject, Text: text.String(), HTML: html.String()}, nil
}

// BuildTemplateData maps an alert onto template fields.
func BuildTemplateData(alert alerting.Alert) TemplateData {
	return TemplateData{
		DeviceID:    alert.DeviceID,
		Threshold:   formatNumber(alert.Threshold),
		Duration:    DurationText(alert.Window),
		NoiseDB:     formatNumber(alert.NoiseDB),
		Readings:    alert.Readings,
		TriggeredAt: alert.TriggeredAt.UTC().Format(time.RFC3339),
	}
}

// DurationText renders a window length in minutes ("un minuto", "5 minutos").
func DurationText(window time.Duration) string {
	minutes := window.Minutes()
	if minutes == 1 {
		return "un minuto"
	}
	return formatNumber(minutes) + " minutos"
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
