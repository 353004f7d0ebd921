package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"otp-service/internal/model"
	"otp-service/internal/util"
)

var ErrUnsupportedChannel = errors.New("unsupported delivery channel")

// Message is one rendered notification ready for delivery. Subject is
// ignored by SMS providers.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a rendered message to one target over a single
// provider. Implementations must respect ctx cancellation.
type Sender interface {
	Name() string
	Send(ctx context.Context, target string, msg Message) error
}

// NotificationGateway routes passcode messages to the sender registered
// for the requested channel.
type NotificationGateway struct {
	senders map[model.Channel]Sender
}

func NewNotificationGateway() *NotificationGateway {
	return &NotificationGateway{
		senders: make(map[model.Channel]Sender),
	}
}

// Register binds a sender to a channel, replacing any previous binding.
func (g *NotificationGateway) Register(channel model.Channel, sender Sender) {
	g.senders[channel] = sender
	util.Info("Notification sender registered",
		zap.String("channel", channel.String()),
		zap.String("provider", sender.Name()))
}

// Provider returns the provider name serving a channel, or "" when none
// is registered.
func (g *NotificationGateway) Provider(channel model.Channel) string {
	if s, ok := g.senders[channel]; ok {
		return s.Name()
	}
	return ""
}

// Deliver sends a freshly issued passcode to the target.
func (g *NotificationGateway) Deliver(ctx context.Context, channel model.Channel, target, code string) error {
	sender, ok := g.senders[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}

	msg := RenderPasscodeMessage(channel, code)
	if err := sender.Send(ctx, target, msg); err != nil {
		return fmt.Errorf("delivery via %s failed: %w", sender.Name(), err)
	}

	util.Info("Passcode delivered",
		zap.String("channel", channel.String()),
		zap.String("provider", sender.Name()),
		zap.String("target", util.MaskTarget(target)))

	return nil
}
