package domain

// ChannelType identifies a notification delivery channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeEmail      ChannelType = "email"
	ChannelTypeMattermost ChannelType = "mattermost"
)

// IsValid checks if the channel type is supported.
func (c ChannelType) IsValid() bool {
	return c == ChannelTypeEmail || c == ChannelTypeMattermost
}
