// Package notify delivers signup confirmation and password reset
// notifications. Delivery is asynchronous: callers enqueue through a
// Dispatcher and a background worker hands messages to a Sender backend.
package notify

import (
	"context"
	"net/url"
	"time"
)

// Notifier is what the verification workflow talks to.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Kind tells the delivery side which template to render.
type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindPasswordReset Kind = "password_reset"
)

// Message is the backend-neutral notification payload.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender is a delivery backend.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Message) error

func (f SenderFunc) Send(ctx context.Context, m Message) error { return f(ctx, m) }

var linkPaths = map[Kind]string{
	KindConfirmation:  "/confirm-account",
	KindPasswordReset: "/password-reset",
}

// Link builds the URL the user follows to consume token.
func Link(baseURL string, kind Kind, token string) string {
	return baseURL + linkPaths[kind] + "?token=" + url.QueryEscape(token)
}
