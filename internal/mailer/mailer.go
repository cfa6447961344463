// Package mailer delivers transactional email such as password reset codes.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"
)

var (
	ErrSendFailed     = errors.New("mailer: failed to send email")
	ErrInvalidMessage = errors.New("mailer: invalid message")
	ErrInvalidConfig  = errors.New("mailer: invalid config")
)

type Message struct {
	To       string
	Subject  string
	TextBody string
	Tag      string
}

func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient %q", ErrInvalidMessage, m.To)
	}
	if m.Subject == "" || m.TextBody == "" {
		return fmt.Errorf("%w: subject and body are required", ErrInvalidMessage)
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResetCodeMessage renders the email carrying a password reset code.
func ResetCodeMessage(to string, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your password reset code",
		TextBody: fmt.Sprintf(
			"Use the code %s to reset your password.\n\nThe code expires in %d minutes and can be used once. If you did not ask for a reset, ignore this email.\n",
			code, int(ttl.Minutes()),
		),
		Tag: "password-reset",
	}
}

// LogSender records deliveries in the log instead of sending them. The body
// is logged at debug level only, which is how a local setup reads reset codes.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email delivered to log", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag)
	s.log.DebugContext(ctx, "email body", "to", msg.To, "body", msg.TextBody)
	return nil
}
