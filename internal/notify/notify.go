package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Notifier delivers request notices to members. Failures are reported but
// never block the operation itself.
type Notifier interface {
	RequestSubmitted(ctx context.Context, email, memberName string, requestID int64) error
	RequestApproved(ctx context.Context, email, memberName string, requestID int64) error
	RequestRejected(ctx context.Context, email, memberName string, requestID int64, reason string) error
}

// LogNotifier writes notices to the log instead of sending them. It is the
// default when no SMTP server is configured.
type LogNotifier struct{}

func (LogNotifier) RequestSubmitted(_ context.Context, email, memberName string, requestID int64) error {
	log.Info().Str("email", email).Str("member", memberName).
		Int64("request_id", requestID).Msg("submission receipt (not sent, no SMTP configured)")
	return nil
}

func (LogNotifier) RequestApproved(_ context.Context, email, memberName string, requestID int64) error {
	log.Info().Str("email", email).Str("member", memberName).
		Int64("request_id", requestID).Msg("approval notice (not sent, no SMTP configured)")
	return nil
}

func (LogNotifier) RequestRejected(_ context.Context, email, memberName string, requestID int64, reason string) error {
	log.Info().Str("email", email).Str("member", memberName).
		Int64("request_id", requestID).Str("reason", reason).
		Msg("rejection notice (not sent, no SMTP configured)")
	return nil
}

// SMTPNotifier sends plain-text notices through an SMTP relay.
type SMTPNotifier struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func (n *SMTPNotifier) RequestSubmitted(ctx context.Context, email, memberName string, requestID int64) error {
	subject := fmt.Sprintf("Pantry request #%d received", requestID)
	body := fmt.Sprintf("Hello %s,\r\n\r\nWe received your request #%d. You will hear from us once it is reviewed.\r\n", memberName, requestID)
	return n.send(ctx, email, subject, body)
}

func (n *SMTPNotifier) RequestApproved(ctx context.Context, email, memberName string, requestID int64) error {
	subject := fmt.Sprintf("Your pantry request #%d was approved", requestID)
	body := fmt.Sprintf("Hello %s,\r\n\r\nYour request #%d has been approved and is ready for pickup.\r\n", memberName, requestID)
	return n.send(ctx, email, subject, body)
}

func (n *SMTPNotifier) RequestRejected(ctx context.Context, email, memberName string, requestID int64, reason string) error {
	subject := fmt.Sprintf("Your pantry request #%d was declined", requestID)
	body := fmt.Sprintf("Hello %s,\r\n\r\nYour request #%d could not be fulfilled.\r\n", memberName, requestID)
	if reason != "" {
		body += fmt.Sprintf("Reason: %s\r\n", reason)
	}
	return n.send(ctx, email, subject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + n.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(n.Addr, n.Auth, n.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
