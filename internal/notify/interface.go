package notify

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a channel is asked to send without the
// settings it needs.
var ErrNotConfigured = errors.New("notify: channel not configured")

// Channel delivers rendered text to one chat destination.
type Channel interface {
	Name() string
	IsConfigured() bool
	// SendText posts text and returns the backend's message id.
	SendText(ctx context.Context, text string) (int64, error)
}
