package authapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

var (
	// ErrCaptchaInvalid indicates captcha verification failed.
	ErrCaptchaInvalid = errors.New("captcha invalid")
	// ErrMailHeader rejects recipients or subjects that would inject headers.
	ErrMailHeader = errors.New("invalid mail header value")
)

// EmailSender delivers account mail: signup codes and password reset links.
type EmailSender interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// NoopEmailSender drops every message. It is the default when no relay is configured.
type NoopEmailSender struct{}

// SendMail discards the message.
func (NoopEmailSender) SendMail(context.Context, string, string, string) error { return nil }

// CaptchaVerifier verifies user-provided captcha tokens on the unauthenticated
// mail-sending endpoints.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string, ip net.IP) error
}

// NoopCaptchaVerifier accepts every token.
type NoopCaptchaVerifier struct{}

// Verify accepts the token.
func (NoopCaptchaVerifier) Verify(context.Context, string, net.IP) error { return nil }

func normalizeCaptchaToken(raw string) string { return strings.TrimSpace(raw) }

// SMTPSender delivers plain-text mail through an SMTP relay.
type SMTPSender struct {
	addr string
	from *mail.Address
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewSMTPSender builds a sender from the COUNSEL_SMTP_* settings. PLAIN auth is
// used when a user is set.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	host, _, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("COUNSEL_SMTP_ADDR: %w", err)
	}
	from, err := mail.ParseAddress(cfg.MailFrom)
	if err != nil {
		return nil, fmt.Errorf("COUNSEL_MAIL_FROM: %w", err)
	}

	s := &SMTPSender{addr: cfg.SMTPAddr, from: from, send: smtp.SendMail, now: time.Now}
	if cfg.SMTPUser != "" {
		s.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, host)
	}
	return s, nil
}

// SendMail sends one message. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) SendMail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return ErrMailHeader
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", rcpt.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return s.send(s.addr, s.auth, s.from.Address, []string{rcpt.Address}, []byte(b.String()))
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) HandlerOption {
	return func(h *Handler) {
		if h == nil || sender == nil {
			return
		}
		h.email = sender
	}
}

// WithCaptchaVerifier overrides the default no-op captcha verifier.
func WithCaptchaVerifier(verifier CaptchaVerifier) HandlerOption {
	return func(h *Handler) {
		if h == nil || verifier == nil {
			return
		}
		h.captcha = verifier
	}
}
