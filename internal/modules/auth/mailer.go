package auth

import (
	"context"
	"log"
)

type Mailer interface {
	SendVerificationMail(ctx context.Context, email, token string) error
	SendPasswordResetMail(ctx context.Context, email, token string) error
}

// DevConsoleMailer logs outgoing mail instead of sending it. Template
// rendering and delivery live outside this subsystem.
type DevConsoleMailer struct {
	enabled bool
}

func NewDevConsoleMailer(enabled bool) *DevConsoleMailer {
	return &DevConsoleMailer{enabled: enabled}
}

func (m *DevConsoleMailer) SendVerificationMail(_ context.Context, email, token string) error {
	if m.enabled {
		log.Printf("[DEV-EMAIL] verification email=%s token=%s", email, token)
	}
	return nil
}

func (m *DevConsoleMailer) SendPasswordResetMail(_ context.Context, email, token string) error {
	if m.enabled {
		log.Printf("[DEV-EMAIL] password-reset email=%s token=%s", email, token)
	}
	return nil
}
