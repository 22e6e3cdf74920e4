package output

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/pkg/sanitize"
)

var ErrMailNotConfigured = errors.New("smtp host not configured")

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
	// RequireTLS fails delivery when the server does not offer STARTTLS.
	RequireTLS bool
	Timeout    time.Duration
}

// MailDispatcher sends alerts to the admin contact over SMTP.
type MailDispatcher struct {
	cfg MailConfig
}

func NewMailDispatcher(cfg MailConfig) *MailDispatcher {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.To
	}
	return &MailDispatcher{cfg: cfg}
}

func (m *MailDispatcher) Enabled() bool { return m.cfg.Host != "" }

func (m *MailDispatcher) Send(ctx context.Context, alert *domain.Alert) error {
	return m.SendMail(ctx, alert.Subject, alert.Body)
}

// SendMail delivers one plain-text message to the configured recipient.
func (m *MailDispatcher) SendMail(ctx context.Context, subject, body string) error {
	if !m.Enabled() {
		return ErrMailNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	msg := m.buildMessage(subject, body, time.Now())
	if err := m.sendSMTP(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.cfg.To, err)
	}
	log.Info().Str("to", m.cfg.To).Str("subject", subject).Msg("Alert mail sent")
	return nil
}

func (m *MailDispatcher) buildMessage(subject, body string, now time.Time) string {
	var msg strings.Builder

	msg.WriteString("From: authwatch <" + headerValue(m.cfg.From) + ">\r\n")
	msg.WriteString("To: " + headerValue(m.cfg.To) + "\r\n")
	msg.WriteString("Subject: " + headerValue(subject) + "\r\n")
	msg.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")

	for line := range strings.Lines(body) {
		msg.WriteString(strings.TrimRight(line, "\r\n") + "\r\n")
	}
	return msg.String()
}

// headerValue keeps attacker-influenced text on a single header line.
func headerValue(s string) string {
	return sanitize.Line(strings.NewReplacer("\r", " ", "\n", " ").Replace(s), 998)
}

func (m *MailDispatcher) sendSMTP(ctx context.Context, msg string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	} else if m.cfg.RequireTLS {
		return errors.New("server does not offer STARTTLS")
	}

	if m.cfg.User != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(m.cfg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once DATA closes; a failed QUIT is not a failure.
	_ = client.Quit()
	return nil
}

func (m *MailDispatcher) Flush() error { return nil }

func (m *MailDispatcher) Close() error { return nil }
