package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"

	"otp-service/internal/config"
)

var ErrInvalidEmail = errors.New("invalid email address")

// EmailSender delivers passcode emails through Resend.
type EmailSender struct {
	client *resend.Client
	from   string
}

func NewEmailSender(cfg *config.Config) *EmailSender {
	return &EmailSender{
		client: resend.NewClient(cfg.Notify.ResendAPIKey),
		from:   cfg.Notify.EmailFrom,
	}
}

func (s *EmailSender) Name() string {
	return "resend"
}

func (s *EmailSender) Send(ctx context.Context, target string, msg Message) error {
	if !strings.Contains(target, "@") {
		return ErrInvalidEmail
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{target},
		Subject: msg.Subject,
		Html:    msg.Body,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	return nil
}
