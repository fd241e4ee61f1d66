// Package notify implements the delivery channels alerts are pushed to.
// Each configured Telegram chat and Discord webhook is one Destination; the
// dispatcher fans out to all of them independently, trying an image-bearing
// send first and falling back to text-only per destination.
package notify

import "context"

// Destination is a single chat channel an alert can be delivered to.
type Destination interface {
	// Name returns a stable identifier for logging and rate limiting,
	// e.g. "telegram:-1001234" or "discord:0".
	Name() string
	// SendText delivers a text-only message.
	SendText(ctx context.Context, title, message string) error
	// SendImage delivers the message with an attached image. Callers fall
	// back to SendText when this fails.
	SendImage(ctx context.Context, title, message string, image []byte, filename string) error
}
