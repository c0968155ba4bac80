package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hygieia/hygieia/internal/config"
	"github.com/hygieia/hygieia/internal/health"
)

// emailSender delivers events over plain SMTP with optional PLAIN auth
type emailSender struct {
	host     string
	port     int
	from     string
	to       []string
	username string
	password string
}

func newEmailSender(cfg *config.Config) *emailSender {
	return &emailSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		to:       cfg.SMTPTo,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (s *emailSender) Send(_ context.Context, event health.TriggerEvent) error {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(event.Priority)), event.Title)

	// MIME headers matter to most mail clients.
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n",
		strings.Join(s.to, ","), s.from, subject, formatBody(event)))

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.from, s.to, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
