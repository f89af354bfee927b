package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/models"
)

// Dispatcher renders forum events and hands them to the group channel.
// A failed send is final; nothing is queued or retried.
type Dispatcher struct {
	channel Channel
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher that sends through NapCat.
func NewDispatcher(cfg config.NapCatConfig) *Dispatcher {
	return NewDispatcherWithChannel(NewNapCat(cfg))
}

// NewDispatcherWithChannel creates a Dispatcher around an arbitrary channel.
func NewDispatcherWithChannel(ch Channel) *Dispatcher {
	return &Dispatcher{channel: ch, now: time.Now}
}

// IsConfigured reports whether the destination address and group are set.
// Dispatch does not require callers to check this first.
func (d *Dispatcher) IsConfigured() bool {
	return d.channel.IsConfigured()
}

// Dispatch renders evt and sends it once. It returns true only when the
// backend accepted the message.
func (d *Dispatcher) Dispatch(ctx context.Context, evt models.ForumEvent) bool {
	text := Render(evt)
	slog.Debug("notify: prepared message", "type", evt.Kind, "text", text)
	return d.SendText(ctx, text)
}

// SendText sends free-form text to the group.
func (d *Dispatcher) SendText(ctx context.Context, text string) bool {
	if !d.channel.IsConfigured() {
		slog.Error("notify: channel not configured, message dropped", "channel", d.channel.Name())
		return false
	}
	id, err := d.channel.SendText(ctx, text)
	if err != nil {
		slog.Error("notify: send failed", "channel", d.channel.Name(), "error", err)
		return false
	}
	slog.Info("notify: message sent", "channel", d.channel.Name(), "message_id", id)
	return true
}

// TestConnection sends a timestamped probe message to the group.
func (d *Dispatcher) TestConnection(ctx context.Context) bool {
	if !d.channel.IsConfigured() {
		slog.Error("notify: connection test skipped, channel not configured", "channel", d.channel.Name())
		return false
	}
	return d.SendText(ctx, "🤖 论坛机器人连接测试 - "+d.now().Format("2006/1/2 15:04:05"))
}
