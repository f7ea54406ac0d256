package notifications

import (
	"context"

	"github.com/bissquit/oprisk/internal/domain"
)

// Notification is a rendered message addressed to one target.
type Notification struct {
	To      string
	Subject string
	Body    string
	Level   int    // escalation level, for channels that style by severity
	Link    string // incident URL, empty when no base URL is configured
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() domain.ChannelType
	Send(ctx context.Context, notification Notification) error
}

// Route sends escalations at MinLevel or above to Target over Channel.
type Route struct {
	MinLevel int
	Channel  domain.ChannelType
	Target   string
}

// Matches reports whether the route applies to an escalation level.
func (r Route) Matches(level int) bool {
	return level >= r.MinLevel
}
