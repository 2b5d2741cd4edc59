// Package notify delivers transactional email: verification, password reset
// and welcome messages. Messages are rendered as plain text, queued on a
// Redis list by Outbox and delivered over SMTP by Dispatcher.
package notify

import "context"

// Notifier is the best-effort email capability consumed by the identity
// service. Implementations log failures and report them as false; they never
// return an error to the caller.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, username, token string) bool
	SendPasswordResetEmail(ctx context.Context, to, username, token string) bool
	SendWelcomeEmail(ctx context.Context, to, username string) bool
}

type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
	KindWelcome       Kind = "welcome"
)

// Message is a rendered email as it travels through the outbox.
// Logs refer to a message by ID, never by recipient.
type Message struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
