// Package email sends announcement notifications via SMTP.
package email

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration.
type Config struct {
	Host       string
	Port       string
	Username   string
	Password   string
	From       string
	FromName   string
	Recipients []string
}

// Service fans announcements out to a fixed recipient list. A nil
// Service is valid and sends nothing.
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates the email service, or nil when SMTP is not
// configured.
func NewService(config Config) *Service {
	if config.Host == "" || config.From == "" || len(config.Recipients) == 0 {
		return nil
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
	}
}

// SendAnnouncement emails one posted announcement to all recipients.
func (s *Service) SendAnnouncement(tripTitle, author, text string) error {
	if s == nil {
		return nil
	}

	subject := fmt.Sprintf("%s: announcement from %s", tripTitle, author)
	body := fmt.Sprintf(
		"<p>%s</p><p>— %s</p>",
		html.EscapeString(text),
		html.EscapeString(author),
	)

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + strings.Join(s.config.Recipients, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(s.server, s.auth, s.config.From, s.config.Recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("send announcement mail: %w", err)
	}
	return nil
}

// SplitRecipients parses a comma-separated recipient list.
func SplitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
