package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string // Email address of the recipient
	Subject  string // Subject of the email
	BodyHTML string // HTML body of the email
	Tag      string // Optional delivery tag for analytics
}

// Validate checks that the parameters describe a sendable email.
func (p SendEmailParams) Validate() error {
	if strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	}
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return fmt.Errorf("%w: recipient %q is not a valid address", ErrInvalidParams, p.SendTo)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// New constructs an EmailSender from config: a DevSender in dev mode,
// otherwise a Postmark client.
func New(cfg Config) (EmailSender, error) {
	if cfg.DevMode {
		return NewDevSender(cfg.DevDir), nil
	}
	return NewPostmarkClient(cfg)
}
