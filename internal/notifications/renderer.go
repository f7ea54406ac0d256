package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders escalation events from the embedded templates, one template per
// channel and message type, named <channel>_<message type>.tmpl.
type Renderer struct {
	templates *template.Template
}

var (
	renderedChannels = []domain.ChannelType{domain.ChannelTypeEmail, domain.ChannelTypeMattermost}
	renderedMessages = []MessageType{MessageTypeEscalation, MessageTypeSLABreach}
)

// NewRenderer parses the templates and fails if any channel/message pair lacks one.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("notifications").Funcs(template.FuncMap{
		"title":         titleCase,
		"upper":         strings.ToUpper,
		"humanize":      humanize,
		"formatTime":    formatTime,
		"severityEmoji": severityEmoji,
		"levelBadge":    levelBadge,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	for _, channel := range renderedChannels {
		for _, msg := range renderedMessages {
			if tmpl.Lookup(templateName(channel, msg)) == nil {
				return nil, fmt.Errorf("missing template %s", templateName(channel, msg))
			}
		}
	}
	return &Renderer{templates: tmpl}, nil
}

func templateName(channel domain.ChannelType, msg MessageType) string {
	return fmt.Sprintf("%s_%s.tmpl", channel, msg)
}

// Render returns the subject and body of payload for channelType.
func (r *Renderer) Render(channelType domain.ChannelType, payload NotificationPayload) (subject, body string, err error) {
	name := templateName(channelType, payload.MessageType)
	tmpl := r.templates.Lookup(name)
	if tmpl == nil {
		return "", "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return renderSubject(payload), strings.TrimSpace(buf.String()), nil
}

func renderSubject(payload NotificationPayload) string {
	prefix := "Escalation"
	if payload.MessageType == MessageTypeSLABreach {
		prefix = "SLA Breach"
	}
	return fmt.Sprintf("[%s L%d] %s", prefix, payload.Event.EscalationLevel, payload.Event.Title)
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

// humanize turns snake_case identifiers into title-cased words.
func humanize(s string) string {
	return titleCase(strings.ReplaceAll(s, "_", " "))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "low":
		return "🟢"
	case "medium":
		return "🟡"
	case "high":
		return "🟠"
	case "critical":
		return "🔴"
	default:
		return "⚪"
	}
}

func levelBadge(level int) string {
	switch {
	case level >= 3:
		return "🚨"
	case level == 2:
		return "⚠️"
	default:
		return "📣"
	}
}
