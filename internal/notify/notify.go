// Package notify delivers reminder messages to users over the configured
// channels.
package notify

import (
	"context"
	"errors"

	"study-planner/internal/model"
)

// ErrNoChannel means the user cannot be reached over this channel, for
// example an email notifier for a user without an address.
var ErrNoChannel = errors.New("user has no address for this channel")

// Message is a plain-text notification.
type Message struct {
	Subject string
	Body    string
}

// Notifier sends a message to one user.
type Notifier interface {
	Notify(ctx context.Context, user model.User, msg Message) error
}
