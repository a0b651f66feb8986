package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/semmidev/oraexport/internal/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails run reports to a fixed operator list.
type EmailNotifier struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
	send       sendFunc
}

func NewEmail(cfg config.EmailConfig) (*EmailNotifier, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, fmt.Errorf("smtp_host is required for email notifier")
	}
	if from == "" {
		return nil, fmt.Errorf("from is required for email notifier")
	}
	recipients := sanitizeRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required for email notifier")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 25
	}

	return &EmailNotifier{
		host:       host,
		port:       port,
		username:   strings.TrimSpace(cfg.Username),
		password:   cfg.Password,
		from:       from,
		recipients: recipients,
		send:       smtp.SendMail,
	}, nil
}

func (n *EmailNotifier) Notify(_ context.Context, subject, body string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		n.from, strings.Join(n.recipients, ","), sanitizeHeader(subject), time.Now().Format(time.RFC1123Z))

	message := []byte(headers + strings.ReplaceAll(body, "\n", "\r\n"))
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	if err := n.send(addr, auth, n.from, n.recipients, message); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

func (n *EmailNotifier) String() string {
	return "email"
}

func sanitizeRecipients(recipients []string) []string {
	var out []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
