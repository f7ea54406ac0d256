package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/notifications"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledConfig() Config {
	return Config{
		Enabled:     true,
		SMTPHost:    "smtp.example.com",
		FromAddress: "OpRisk <oncall@example.com>",
		Clock:       clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)),
	}
}

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"disabled skips validation", func(c *Config) { *c = Config{} }, ""},
		{"missing host", func(c *Config) { c.SMTPHost = "" }, "SMTP host is required"},
		{"missing from", func(c *Config) { c.FromAddress = "" }, "invalid from address"},
		{"malformed from", func(c *Config) { c.FromAddress = "not an address" }, "invalid from address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			tt.mutate(&cfg)

			sender, err := NewSender(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.ChannelTypeEmail, sender.Type())
			assert.Equal(t, defaultSMTPPort, sender.config.SMTPPort)
		})
	}
}

func TestNewSender_Auth(t *testing.T) {
	cfg := enabledConfig()
	sender, err := NewSender(cfg)
	require.NoError(t, err)
	assert.Nil(t, sender.auth)

	cfg.SMTPUser, cfg.SMTPPassword = "user", "pass"
	sender, err = NewSender(cfg)
	require.NoError(t, err)
	assert.NotNil(t, sender.auth)
}

func TestSender_Send_DisabledDrops(t *testing.T) {
	sender, err := NewSender(Config{})
	require.NoError(t, err)

	err = sender.Send(context.Background(), notifications.Notification{To: "risk@example.com", Body: "x"})
	assert.NoError(t, err)
}

func TestSender_Send_BadRecipients(t *testing.T) {
	sender, err := NewSender(enabledConfig())
	require.NoError(t, err)

	for _, to := range []string{"", " , ", "not-an-address"} {
		t.Run(to, func(t *testing.T) {
			err := sender.Send(context.Background(), notifications.Notification{To: to, Body: "x"})
			require.Error(t, err)

			var r *notifications.RetryableError
			require.ErrorAs(t, err, &r)
			assert.False(t, r.IsRetryable())
		})
	}
}

func TestParseRecipients(t *testing.T) {
	got, err := parseRecipients("risk@example.com, On Call <oncall@example.com>")
	require.NoError(t, err)
	assert.Equal(t, []string{"risk@example.com", "oncall@example.com"}, got)
}

func TestSender_BuildMessage(t *testing.T) {
	sender, err := NewSender(enabledConfig())
	require.NoError(t, err)

	msg := string(sender.buildMessage(notifications.Notification{
		Subject: "[L1] Payments API down",
		Body:    "Escalated to on-call\nReason: no response",
		Level:   1,
		Link:    "https://oprisk.example.com/incidents/42",
	}))

	headers, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, headers, `From: "OpRisk" <oncall@example.com>`)
	assert.Contains(t, headers, "To: undisclosed-recipients:;")
	assert.Contains(t, headers, "Subject: [L1] Payments API down")
	assert.Contains(t, headers, "Date: Mon, 02 Mar 2026 09:30:00 +0000")
	assert.NotContains(t, headers, "X-Priority")
	assert.Equal(t, "Escalated to on-call\r\nReason: no response\r\n\r\nhttps://oprisk.example.com/incidents/42\r\n", body)
}

func TestSender_BuildMessage_UrgentLevel(t *testing.T) {
	sender, err := NewSender(enabledConfig())
	require.NoError(t, err)

	msg := string(sender.buildMessage(notifications.Notification{
		Subject: "Эскалация",
		Body:    "see https://x/1",
		Level:   3,
		Link:    "https://x/1",
	}))

	assert.Contains(t, msg, "X-Priority: 1 (Highest)")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Equal(t, 1, strings.Count(msg, "https://x/1"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mailbox busy", &textproto.Error{Code: 450, Msg: "mailbox busy"}, true},
		{"service unavailable", fmt.Errorf("data: %w", &textproto.Error{Code: 421, Msg: "closing"}), true},
		{"mailbox unknown", &textproto.Error{Code: 550, Msg: "no such user"}, false},
		{"auth failed", fmt.Errorf("auth: %w", &textproto.Error{Code: 535, Msg: "bad credentials"}), false},
		{"connection refused", fmt.Errorf("dial smtp: %w", &net.OpError{Op: "dial", Err: errors.New("connection refused")}), true},
		{"plain", errors.New("no recipient accepted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
