// Package mattermost posts escalation notices to Mattermost incoming webhooks.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/notifications"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "OpRisk"

	// maxErrorBody limits how much of a webhook error response ends up in logs.
	maxErrorBody = 512
)

// Config holds Mattermost sender configuration. The webhook URL is the route target.
type Config struct {
	Username string
	IconURL  string
	Channel  string // overrides the webhook's default channel
	Timeout  time.Duration
}

// Sender delivers notifications as webhook attachments colored by escalation level.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a Mattermost sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeMattermost
}

type attachment struct {
	Fallback  string `json:"fallback"`
	Color     string `json:"color"`
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text"`
}

type webhookPayload struct {
	Username    string       `json:"username,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	Attachments []attachment `json:"attachments"`
}

// Send posts one notification. notification.To is the webhook URL.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL, err := url.Parse(notification.To)
	if err != nil || webhookURL.Scheme == "" || webhookURL.Host == "" {
		return notifications.NewNonRetryableError(fmt.Errorf("mattermost: invalid webhook url"))
	}

	fallback := notification.Subject
	if fallback == "" {
		fallback = notification.Body
	}

	body, err := json.Marshal(webhookPayload{
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
		Channel:  s.config.Channel,
		Attachments: []attachment{{
			Fallback:  fallback,
			Color:     LevelColor(notification.Level),
			Title:     notification.Subject,
			TitleLink: notification.Link,
			Text:      notification.Body,
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL.String(), bytes.NewReader(body))
	if err != nil {
		return notifications.NewNonRetryableError(fmt.Errorf("mattermost: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return notifications.NewRetryableError(fmt.Errorf("mattermost: send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		slog.Debug("mattermost notice posted", "host", webhookURL.Host, "level", notification.Level)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	if statusErr.Temporary() {
		return notifications.NewRetryableError(statusErr)
	}
	return notifications.NewNonRetryableError(statusErr)
}

// StatusError is a non-200 webhook response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mattermost: webhook returned %d", e.Code)
	}
	return fmt.Sprintf("mattermost: webhook returned %d: %s", e.Code, e.Body)
}

// Temporary reports whether a later attempt may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// LevelColor maps an escalation level to an attachment color. Levels above 3 share
// the highest color.
func LevelColor(level int) string {
	switch {
	case level <= 1:
		return "#f2c744"
	case level == 2:
		return "#f28b30"
	default:
		return "#d24b4e"
	}
}
