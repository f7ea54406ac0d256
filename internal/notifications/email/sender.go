// Package email delivers escalation notices over SMTP with STARTTLS.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/notifications"
	"github.com/jonboulle/clockwork"
)

const (
	dialTimeout     = 10 * time.Second
	defaultSMTPPort = 587

	// urgentLevel and above are flagged high priority for mail clients.
	urgentLevel = 3
)

// Config holds SMTP settings.
type Config struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
	Clock        clockwork.Clock
}

// Sender delivers notifications as plain-text mail.
type Sender struct {
	config Config
	from   *mail.Address
	auth   smtp.Auth
	clock  clockwork.Clock
}

// NewSender validates config and creates a sender. A disabled sender accepts and
// drops every notification.
func NewSender(config Config) (*Sender, error) {
	if config.SMTPPort == 0 {
		config.SMTPPort = defaultSMTPPort
	}
	s := &Sender{config: config, clock: config.Clock}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if !config.Enabled {
		return s, nil
	}

	if config.SMTPHost == "" {
		return nil, errors.New("email sender: SMTP host is required when enabled")
	}
	from, err := mail.ParseAddress(config.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("email sender: invalid from address %q: %w", config.FromAddress, err)
	}
	s.from = from

	if config.SMTPUser != "" && config.SMTPPassword != "" {
		s.auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, config.SMTPHost)
	}

	slog.Info("email sender configured",
		"smtp_host", config.SMTPHost,
		"smtp_port", config.SMTPPort,
		"from_address", from.Address,
	)
	return s, nil
}

// Type returns the channel type.
func (s *Sender) Type() domain.ChannelType {
	return domain.ChannelTypeEmail
}

// Send mails one notification. notification.To is an address list as accepted by
// net/mail; recipients appear in the envelope only.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if !s.config.Enabled {
		slog.Debug("email sender disabled, dropping notice", "level", notification.Level)
		return nil
	}

	recipients, err := parseRecipients(notification.To)
	if err != nil {
		return notifications.NewNonRetryableError(err)
	}

	msg := s.buildMessage(notification)
	if err := s.deliver(ctx, recipients, msg); err != nil {
		if IsRetryable(err) {
			return notifications.NewRetryableError(err)
		}
		return notifications.NewNonRetryableError(err)
	}
	return nil
}

func parseRecipients(to string) ([]string, error) {
	if strings.TrimSpace(strings.ReplaceAll(to, ",", "")) == "" {
		return nil, errors.New("email: no recipients")
	}
	list, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, fmt.Errorf("email: invalid recipients: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out, nil
}

func (s *Sender) buildMessage(n notifications.Notification) []byte {
	var msg strings.Builder

	header := func(key, value string) {
		msg.WriteString(key + ": " + value + "\r\n")
	}
	header("From", s.from.String())
	header("To", "undisclosed-recipients:;")
	header("Subject", mime.QEncoding.Encode("utf-8", n.Subject))
	header("Date", s.clock.Now().Format(time.RFC1123Z))
	if n.Level >= urgentLevel {
		header("X-Priority", "1 (Highest)")
		header("Importance", "High")
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	msg.WriteString("\r\n")

	body := n.Body
	if n.Link != "" && !strings.Contains(body, n.Link) {
		body = strings.TrimRight(body, "\n") + "\n\n" + n.Link + "\n"
	}
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(msg.String())
}

func (s *Sender) deliver(ctx context.Context, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(s.config.SMTPHost, fmt.Sprint(s.config.SMTPPort))

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.config.SMTPHost, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	accepted := 0
	var rejected error
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			slog.Warn("smtp recipient rejected", "error", err)
			rejected = err
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("no recipient accepted: %w", rejected)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return client.Quit()
}

// IsRetryable reports whether a delivery error is transient: network failures and
// SMTP 4xx replies.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 400 && protoErr.Code < 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
